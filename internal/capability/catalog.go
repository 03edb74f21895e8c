package capability

// Capability ids
const (
	LogMedication      = "log_medication"
	AddMedication      = "add_medication"
	LogBloodPressure   = "log_blood_pressure"
	LogHydration       = "log_hydration"
	LogCheckIn         = "log_checkin"
	UpdateLocation     = "update_location"
	CreateReminder     = "create_reminder"
	DeleteReminder     = "delete_reminder"
	AddCareLog         = "add_care_log"
	RecordVisitOutcome = "record_visit_outcome"
	AddClinicalDate    = "add_clinical_date"
	SaveRecommendation = "save_recommendation"
	GetHydrationToday  = "get_hydration_today"
)

// Mood scale for check-ins, least to most severe.
var MoodScale = []string{"great", "good", "okay", "low", "very_low"}

// DefaultCatalog returns the built-in capability set.
func DefaultCatalog() []Definition {
	return []Definition{
		{
			ID:          LogMedication,
			DisplayName: "Log medication",
			Description: "Record that a medication dose was taken, missed or skipped",
			Category:    CategoryMedication,
			Sensitivity: SensitivityHigh,
			Parameters: []ParameterDefinition{
				{Name: "medication_name", Type: TypeString, Required: true, Example: "aspirin", Description: "Name of the medication"},
				{Name: "dose", Type: TypeString, Example: "81mg", Description: "Dose taken"},
				{Name: "status", Type: TypeString, Enum: []string{"taken", "missed", "skipped"}, Example: "taken"},
				{Name: "taken_at", Type: TypeString, Example: "this morning", Description: "When the dose was taken, in the user's words"},
				{Name: "notes", Type: TypeString},
			},
			IntentKeywords: []string{"took", "taken", "take", "medication", "medicine", "meds", "pill", "pills", "dose", "tablet", "missed", "skipped"},
			SafetyNotes:    "Never infer a dose the user did not mention.",
		},
		{
			ID:                   AddMedication,
			DisplayName:          "Add medication",
			Description:          "Add a medication to the user's medication list",
			Category:             CategoryMedication,
			Sensitivity:          SensitivityCritical,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "name", Type: TypeString, Required: true, Example: "lisinopril"},
				{Name: "dosage", Type: TypeString, Example: "10mg"},
				{Name: "schedule", Type: TypeString, Example: "every morning with food"},
				{Name: "purpose", Type: TypeString, Example: "blood pressure"},
			},
			SafetyNotes: "Only add medications the user or their clinician named.",
		},
		{
			ID:          LogBloodPressure,
			DisplayName: "Log blood pressure",
			Description: "Record a blood pressure reading",
			Category:    CategoryVitals,
			Sensitivity: SensitivityHigh,
			Parameters: []ParameterDefinition{
				{Name: "systolic", Type: TypeNumber, Required: true, Example: 120},
				{Name: "diastolic", Type: TypeNumber, Required: true, Example: 80},
				{Name: "pulse", Type: TypeNumber, Example: 72},
				{Name: "position", Type: TypeString, Enum: []string{"sitting", "standing", "lying"}},
				{Name: "reading", Type: TypeString, Example: "120 over 80", Description: "The reading in the user's words"},
				{Name: "measured_at", Type: TypeString, Example: "8am"},
			},
			IntentKeywords: []string{"blood pressure", "bp", "systolic", "diastolic", "reading", "pressure", "over", "mmhg"},
			SafetyNotes:    "Readings in the crisis band must be surfaced to the user immediately.",
		},
		{
			ID:          LogHydration,
			DisplayName: "Log hydration",
			Description: "Record fluid intake",
			Category:    CategoryHydration,
			Sensitivity: SensitivityLow,
			Parameters: []ParameterDefinition{
				{Name: "amount_ml", Type: TypeNumber, Required: true, Example: 250},
				{Name: "quantity", Type: TypeString, Example: "two glasses", Description: "The amount in the user's words"},
				{Name: "beverage", Type: TypeString, Example: "water"},
			},
		},
		{
			ID:          LogCheckIn,
			DisplayName: "Daily check-in",
			Description: "Record today's mood and energy",
			Category:    CategoryCheckIn,
			Sensitivity: SensitivityMedium,
			Parameters: []ParameterDefinition{
				{Name: "mood", Type: TypeString, Required: true, Enum: MoodScale, CrisisValue: "very_low", Example: "good"},
				{Name: "energy", Type: TypeNumber, Example: 3, Description: "Energy from 1 to 5"},
				{Name: "sleep_hours", Type: TypeNumber, Example: 7},
				{Name: "notes", Type: TypeString},
			},
			SafetyNotes: "A very_low mood is recorded and flagged for follow-up.",
		},
		{
			ID:          UpdateLocation,
			DisplayName: "Update location",
			Description: "Remember where the user currently is",
			Category:    CategoryProfile,
			Sensitivity: SensitivityLow,
			Parameters: []ParameterDefinition{
				{Name: "location", Type: TypeString, Required: true, Example: "home"},
			},
		},
		{
			ID:                   CreateReminder,
			DisplayName:          "Create reminder",
			Description:          "Schedule a one-time or recurring reminder",
			Category:             CategoryReminders,
			Sensitivity:          SensitivityMedium,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "title", Type: TypeString, Required: true, Example: "Take metformin"},
				{Name: "schedule", Type: TypeString, Required: true, Example: "every weekday at 8am"},
				{Name: "category", Type: TypeString, Enum: []string{"medication", "appointment", "hydration", "exercise", "general"}},
				{Name: "time", Type: TypeString, Description: "HH:MM, filled from the schedule", Derived: true},
				{Name: "days", Type: TypeArray, Description: "Weekday numbers, filled from the schedule", Derived: true},
				{Name: "interval_days", Type: TypeNumber, Description: "Days between occurrences, filled from the schedule", Derived: true},
				{Name: "remind_at", Type: TypeString, Description: "RFC3339 time of a one-time reminder, filled from the schedule", Derived: true},
			},
		},
		{
			ID:                   DeleteReminder,
			DisplayName:          "Delete reminder",
			Description:          "Remove a reminder by id or title",
			Category:             CategoryReminders,
			Sensitivity:          SensitivityHigh,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "reminder", Type: TypeString, Required: true, Example: "Take metformin"},
			},
			IntentKeywords: []string{"delete", "remove", "cancel", "stop", "turn off", "disable"},
		},
		{
			ID:                   AddCareLog,
			DisplayName:          "Add care log entry",
			Description:          "Document a symptom, observation or incident in the care log",
			Category:             CategoryCareLog,
			Sensitivity:          SensitivityCritical,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "entry_type", Type: TypeString, Required: true, Enum: []string{"symptom", "note", "observation", "incident"}},
				{Name: "content", Type: TypeString, Required: true, Example: "headache since yesterday"},
				{Name: "severity", Type: TypeString, Enum: []string{"mild", "moderate", "severe"}},
				{Name: "occurred_at", Type: TypeString, Example: "yesterday evening"},
			},
			SafetyNotes: "Care log entries are shared with clinicians; only document what the user explicitly asked to record.",
		},
		{
			ID:                   RecordVisitOutcome,
			DisplayName:          "Record visit outcome",
			Description:          "Document what happened at a clinical visit",
			Category:             CategoryClinical,
			Sensitivity:          SensitivityCritical,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "summary", Type: TypeString, Required: true, Example: "Dr. Patel started lisinopril, follow up in 3 months"},
				{Name: "provider", Type: TypeString, Example: "Dr. Patel"},
				{Name: "follow_up", Type: TypeString, Example: "in 3 months"},
				{Name: "follow_up_date", Type: TypeString, Description: "YYYY-MM-DD, filled from follow_up", Derived: true},
				{Name: "diagnoses", Type: TypeArray},
				{Name: "medication_changes", Type: TypeArray, Description: "Items like \"start lisinopril\""},
				{Name: "recommendations", Type: TypeArray},
			},
		},
		{
			ID:                   AddClinicalDate,
			DisplayName:          "Add clinical date",
			Description:          "Save an upcoming appointment, lab or refill date",
			Category:             CategoryClinical,
			Sensitivity:          SensitivityCritical,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "title", Type: TypeString, Required: true, Example: "Cardiology follow-up"},
				{Name: "date", Type: TypeString, Required: true, Example: "next tuesday at 2pm"},
				{Name: "kind", Type: TypeString, Enum: []string{"appointment", "lab", "procedure", "refill", "follow_up"}},
				{Name: "location", Type: TypeString},
				{Name: "date_iso", Type: TypeString, Description: "RFC3339, filled from date", Derived: true},
			},
		},
		{
			ID:                   SaveRecommendation,
			DisplayName:          "Save recommendation",
			Description:          "Save advice a clinician gave the user",
			Category:             CategoryClinical,
			Sensitivity:          SensitivityMedium,
			RequiresConfirmation: true,
			Parameters: []ParameterDefinition{
				{Name: "text", Type: TypeString, Required: true, Example: "walk 30 minutes every day"},
				{Name: "category", Type: TypeString, Enum: []string{"exercise", "diet", "hydration", "sleep", "monitoring", "medication", "follow_up", "general"}},
				{Name: "cadence", Type: TypeString, Description: "Filled from the text when it names a schedule"},
				{Name: "source", Type: TypeString, Example: "Dr. Patel"},
			},
		},
		{
			ID:          GetHydrationToday,
			DisplayName: "Today's hydration",
			Description: "Report how much the user has had to drink today",
			Category:    CategoryHydration,
			Sensitivity: SensitivityLow,
			ReadOnly:    true,
		},
	}
}

package health

import (
	"time"
)

// Medication is an entry on the user's medication list
type Medication struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index"`
	Name       string    `json:"name" gorm:"index"`
	Dosage     string    `json:"dosage"`
	Purpose    string    `json:"purpose"`
	Schedule   string    `json:"schedule"`
	Frequency  string    `json:"frequency"`
	Times      []string  `json:"times" gorm:"-"`
	TimesJSON  string    `json:"-"`
	DaysOfWeek []int     `json:"days_of_week" gorm:"-"`
	DaysJSON   string    `json:"-"`
	WithFood   bool      `json:"with_food"`
	BeforeBed  bool      `json:"before_bed"`
	Active     bool      `json:"active" gorm:"default:true"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Medication event statuses
const (
	StatusTaken   = "taken"
	StatusMissed  = "missed"
	StatusSkipped = "skipped"
)

// MedicationEvent records one dose being taken, missed or skipped
type MedicationEvent struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index"`
	MedicationID   string    `json:"medication_id" gorm:"index"`
	MedicationName string    `json:"medication_name"`
	Status         string    `json:"status"`
	Dose           string    `json:"dose"`
	OccurredAt     time.Time `json:"occurred_at" gorm:"index"`
	Notes          string    `json:"notes"`
	CreatedAt      time.Time `json:"created_at"`
}

// CheckIn is the once-a-day mood and energy record
type CheckIn struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"uniqueIndex:idx_checkin_user_day"`
	Day        string    `json:"day" gorm:"uniqueIndex:idx_checkin_user_day"`
	Mood       string    `json:"mood"`
	Energy     int       `json:"energy"`
	SleepHours float64   `json:"sleep_hours"`
	Notes      string    `json:"notes"`
	Crisis     bool      `json:"crisis"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// VitalReading is a blood pressure measurement
type VitalReading struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index"`
	Systolic       int       `json:"systolic"`
	Diastolic      int       `json:"diastolic"`
	Pulse          int       `json:"pulse"`
	Position       string    `json:"position"`
	Classification string    `json:"classification"`
	MeasuredAt     time.Time `json:"measured_at" gorm:"index"`
	CreatedAt      time.Time `json:"created_at"`
}

// HydrationEntry is one drink. RunningTotalML is the day's total including
// this entry.
type HydrationEntry struct {
	ID             string    `json:"id" gorm:"primaryKey"`
	UserID         string    `json:"user_id" gorm:"index:idx_hydration_user_day"`
	Day            string    `json:"day" gorm:"index:idx_hydration_user_day"`
	AmountML       int       `json:"amount_ml"`
	Beverage       string    `json:"beverage"`
	RunningTotalML int       `json:"running_total_ml"`
	LoggedAt       time.Time `json:"logged_at"`
}

// Reminder is a one-time or recurring nudge. Delivery is not handled here;
// NextFireAt is kept current by the scheduler.
type Reminder struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	UserID       string     `json:"user_id" gorm:"index"`
	Title        string     `json:"title"`
	Category     string     `json:"category"`
	Schedule     string     `json:"schedule"`
	CronSpec     string     `json:"cron_spec"`
	IntervalDays int        `json:"interval_days"`
	TimeOfDay    string     `json:"time_of_day"`
	RemindAt     *time.Time `json:"remind_at"`
	NextFireAt   *time.Time `json:"next_fire_at" gorm:"index"`
	Active       bool       `json:"active" gorm:"default:true"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Recurring reports whether the reminder repeats
func (r *Reminder) Recurring() bool {
	return r.CronSpec != "" || r.IntervalDays > 0
}

// CareLogEntry is a documented symptom, note or incident
type CareLogEntry struct {
	ID         string    `json:"id" gorm:"primaryKey"`
	UserID     string    `json:"user_id" gorm:"index"`
	EntryType  string    `json:"entry_type"`
	Content    string    `json:"content"`
	Severity   string    `json:"severity"`
	OccurredAt string    `json:"occurred_at"`
	VisitID    string    `json:"visit_id"`
	CreatedAt  time.Time `json:"created_at"`
}

// ClinicalDate is an upcoming appointment, lab, procedure or refill
type ClinicalDate struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	Title     string    `json:"title"`
	Kind      string    `json:"kind"`
	Date      time.Time `json:"date" gorm:"index"`
	Location  string    `json:"location"`
	VisitID   string    `json:"visit_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Recommendation is advice from a clinician
type Recommendation struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	UserID    string    `json:"user_id" gorm:"index"`
	Text      string    `json:"text"`
	Category  string    `json:"category"`
	Cadence   string    `json:"cadence"`
	Source    string    `json:"source"`
	VisitID   string    `json:"visit_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Visit groups the records written for one clinical visit outcome
type Visit struct {
	Note            *CareLogEntry
	FollowUp        *ClinicalDate
	Recommendations []*Recommendation
}

// Blood pressure classes
const (
	BPLow        = "low"
	BPNormal     = "normal"
	BPElevated   = "elevated"
	BPHighStage1 = "high_stage_1"
	BPHighStage2 = "high_stage_2"
	BPCrisis     = "crisis"
)

// ClassifyBloodPressure places a reading in a fixed band. High bands are
// checked before low, so 170/55 is stage 2 rather than low.
func ClassifyBloodPressure(systolic, diastolic int) string {
	switch {
	case systolic > 180 || diastolic > 120:
		return BPCrisis
	case systolic >= 140 || diastolic >= 90:
		return BPHighStage2
	case systolic >= 130 || diastolic >= 80:
		return BPHighStage1
	case systolic < 90 || diastolic < 60:
		return BPLow
	case systolic >= 120:
		return BPElevated
	default:
		return BPNormal
	}
}

// CalculateAdherence returns the share of events that were taken, 0-100
func CalculateAdherence(events []MedicationEvent) float64 {
	if len(events) == 0 {
		return 0
	}
	taken := 0
	for _, e := range events {
		if e.Status == StatusTaken {
			taken++
		}
	}
	return float64(taken) / float64(len(events)) * 100
}

// DayKey is the calendar day of t in its own location
func DayKey(t time.Time) string {
	return t.Format("2006-01-02")
}

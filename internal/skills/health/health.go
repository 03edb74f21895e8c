package health

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/extract"
	"github.com/gmsas95/myrai-care/internal/skills"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ProfileUpdater writes the working-memory fields that live on the user profile
type ProfileUpdater interface {
	SetActiveLocation(ctx context.Context, userID, location string) error
}

// Skill binds the health capabilities to a Repository
type Skill struct {
	*skills.BaseSkill
	repo     Repository
	profiles ProfileUpdater
	logger   *zap.Logger
}

// NewSkill creates the health skill with one binding per capability
func NewSkill(repo Repository, profiles ProfileUpdater, logger *zap.Logger) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Skill{
		BaseSkill: skills.NewBaseSkill("health"),
		repo:      repo,
		profiles:  profiles,
		logger:    logger,
	}

	s.registerBindings()
	return s
}

func (s *Skill) registerBindings() {
	bindings := []skills.Binding{
		{Capability: capability.LogMedication, Handler: s.logMedication},
		{Capability: capability.AddMedication, Handler: s.addMedication, LockKey: userKey("medications")},
		{Capability: capability.LogBloodPressure, Handler: s.logBloodPressure},
		{Capability: capability.LogHydration, Handler: s.logHydration, LockKey: dayKey("hydration")},
		{Capability: capability.LogCheckIn, Handler: s.logCheckIn, LockKey: dayKey("checkin")},
		{Capability: capability.UpdateLocation, Handler: s.updateLocation, LockKey: userKey("profile")},
		{Capability: capability.CreateReminder, Handler: s.createReminder},
		{Capability: capability.DeleteReminder, Handler: s.deleteReminder, LockKey: userKey("reminders")},
		{Capability: capability.AddCareLog, Handler: s.addCareLog},
		{Capability: capability.RecordVisitOutcome, Handler: s.recordVisitOutcome},
		{Capability: capability.AddClinicalDate, Handler: s.addClinicalDate},
		{Capability: capability.SaveRecommendation, Handler: s.saveRecommendation},
		{Capability: capability.GetHydrationToday, Handler: s.getHydrationToday},
	}

	for _, b := range bindings {
		s.AddBinding(b)
	}
}

func userKey(record string) skills.LockKeyFunc {
	return func(call skills.Call) string {
		return call.UserID + ":" + record
	}
}

func dayKey(record string) skills.LockKeyFunc {
	return func(call skills.Call) string {
		return call.UserID + ":" + record + ":" + DayKey(call.Now)
	}
}

// Medication

func (s *Skill) logMedication(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	name := skills.StringArg(call.Params, "medication_name")
	status := skills.StringArg(call.Params, "status")
	if status == "" {
		status = StatusTaken
	}

	med, err := s.repo.FindMedication(ctx, call.UserID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up medication: %w", err)
	}

	event := &MedicationEvent{
		UserID:         call.UserID,
		MedicationName: name,
		Status:         status,
		Dose:           skills.StringArg(call.Params, "dose"),
		OccurredAt:     resolveTime(skills.StringArg(call.Params, "taken_at"), call.Now).UTC(),
		Notes:          skills.StringArg(call.Params, "notes"),
	}
	if med != nil {
		event.MedicationID = med.ID
		event.MedicationName = med.Name
		if event.Dose == "" {
			event.Dose = med.Dosage
		}
	}

	if err := s.repo.RecordMedicationEvent(ctx, event); err != nil {
		return nil, fmt.Errorf("failed to record medication event: %w", err)
	}

	s.logger.Debug("Medication event recorded",
		zap.String("user_id", call.UserID),
		zap.String("medication", event.MedicationName),
		zap.String("status", status))

	msg := fmt.Sprintf("Logged %s as %s.", event.MedicationName, status)
	if med == nil {
		msg += " It isn't on your medication list yet."
	}
	return &skills.Outcome{
		Message: msg,
		Data: map[string]interface{}{
			"event_id":    event.ID,
			"medication":  event.MedicationName,
			"status":      status,
			"occurred_at": event.OccurredAt.Format(time.RFC3339),
			"on_list":     med != nil,
		},
	}, nil
}

func (s *Skill) addMedication(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	name := skills.StringArg(call.Params, "name")

	existing, err := s.repo.FindMedication(ctx, call.UserID, name)
	if err != nil {
		return nil, fmt.Errorf("failed to look up medication: %w", err)
	}
	if existing != nil && strings.EqualFold(existing.Name, name) {
		return nil, skills.Refuse("%s is already on your medication list.", existing.Name)
	}

	schedule := skills.StringArg(call.Params, "schedule")
	parsed := ParseMedicationSchedule(schedule)

	med := &Medication{
		UserID:     call.UserID,
		Name:       name,
		Dosage:     skills.StringArg(call.Params, "dosage"),
		Purpose:    skills.StringArg(call.Params, "purpose"),
		Schedule:   schedule,
		Frequency:  parsed.Frequency,
		Times:      parsed.Times,
		DaysOfWeek: parsed.DaysOfWeek,
		WithFood:   parsed.WithFood,
		BeforeBed:  parsed.BeforeBed,
	}
	if err := s.repo.AddMedication(ctx, med); err != nil {
		return nil, fmt.Errorf("failed to add medication: %w", err)
	}

	msg := fmt.Sprintf("Added %s to your medication list.", med.Name)
	if len(med.Times) > 0 {
		msg = fmt.Sprintf("Added %s to your medication list (%s).", med.Name, strings.Join(med.Times, ", "))
	}
	return &skills.Outcome{
		Message: msg,
		Data: map[string]interface{}{
			"medication_id": med.ID,
			"frequency":     med.Frequency,
			"times":         med.Times,
			"with_food":     med.WithFood,
		},
	}, nil
}

// Vitals

func (s *Skill) logBloodPressure(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	sys, _ := skills.NumberArg(call.Params, "systolic")
	dia, _ := skills.NumberArg(call.Params, "diastolic")
	systolic, diastolic := int(sys), int(dia)
	if !extract.ValidBloodPressure(systolic, diastolic) {
		return nil, skills.Refuse("%d/%d doesn't look like a valid blood pressure reading. Could you check the numbers?", systolic, diastolic)
	}

	reading := &VitalReading{
		UserID:         call.UserID,
		Systolic:       systolic,
		Diastolic:      diastolic,
		Position:       skills.StringArg(call.Params, "position"),
		Classification: ClassifyBloodPressure(systolic, diastolic),
		MeasuredAt:     resolveTime(skills.StringArg(call.Params, "measured_at"), call.Now).UTC(),
	}
	if pulse, ok := skills.NumberArg(call.Params, "pulse"); ok {
		reading.Pulse = int(pulse)
	}

	if err := s.repo.SaveVitalReading(ctx, reading); err != nil {
		return nil, fmt.Errorf("failed to save reading: %w", err)
	}

	crisis := reading.Classification == BPCrisis
	if crisis {
		s.logger.Warn("Blood pressure reading in crisis range",
			zap.String("user_id", call.UserID),
			zap.Int("systolic", systolic),
			zap.Int("diastolic", diastolic))
	}

	return &skills.Outcome{
		Message: fmt.Sprintf("Logged your blood pressure of %d/%d (%s).", systolic, diastolic, describeClass(reading.Classification)),
		Crisis:  crisis,
		Data: map[string]interface{}{
			"reading_id":     reading.ID,
			"systolic":       systolic,
			"diastolic":      diastolic,
			"classification": reading.Classification,
		},
	}, nil
}

func describeClass(class string) string {
	switch class {
	case BPHighStage1:
		return "high, stage 1"
	case BPHighStage2:
		return "high, stage 2"
	case BPCrisis:
		return "in the crisis range"
	default:
		return class
	}
}

// Hydration

func (s *Skill) logHydration(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	amount, _ := skills.NumberArg(call.Params, "amount_ml")
	ml := int(amount + 0.5)
	if ml <= 0 || ml > 5000 {
		return nil, skills.Refuse("%d ml doesn't sound right for one drink. How much did you have?", ml)
	}

	day := DayKey(call.Now)
	entries, err := s.repo.HydrationForDay(ctx, call.UserID, day)
	if err != nil {
		return nil, fmt.Errorf("failed to load today's hydration: %w", err)
	}

	total := ml
	for _, e := range entries {
		total += e.AmountML
	}

	beverage := skills.StringArg(call.Params, "beverage")
	if beverage == "" {
		beverage = "water"
	}
	entry := &HydrationEntry{
		UserID:         call.UserID,
		Day:            day,
		AmountML:       ml,
		Beverage:       beverage,
		RunningTotalML: total,
		LoggedAt:       call.Now.UTC(),
	}
	if err := s.repo.AddHydrationEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add hydration entry: %w", err)
	}

	return &skills.Outcome{
		Message: fmt.Sprintf("Logged %d ml of %s. That's %d ml today.", ml, beverage, total),
		Data: map[string]interface{}{
			"entry_id":  entry.ID,
			"amount_ml": ml,
			"total_ml":  total,
		},
	}, nil
}

func (s *Skill) getHydrationToday(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	entries, err := s.repo.HydrationForDay(ctx, call.UserID, DayKey(call.Now))
	if err != nil {
		return nil, fmt.Errorf("failed to load today's hydration: %w", err)
	}

	total := 0
	for _, e := range entries {
		total += e.AmountML
	}

	msg := "You haven't logged any drinks today."
	switch {
	case len(entries) == 1:
		msg = fmt.Sprintf("You've had %d ml today from 1 drink.", total)
	case len(entries) > 1:
		msg = fmt.Sprintf("You've had %d ml today from %d drinks.", total, len(entries))
	}
	return &skills.Outcome{
		Message: msg,
		Data: map[string]interface{}{
			"total_ml": total,
			"entries":  len(entries),
		},
	}, nil
}

// Check-in and profile

func (s *Skill) logCheckIn(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	mood := strings.ToLower(skills.StringArg(call.Params, "mood"))

	checkIn := &CheckIn{
		UserID: call.UserID,
		Day:    DayKey(call.Now),
		Mood:   mood,
		Notes:  skills.StringArg(call.Params, "notes"),
		Crisis: mood == "very_low",
	}
	if energy, ok := skills.NumberArg(call.Params, "energy"); ok {
		if energy < 1 || energy > 5 {
			return nil, skills.Refuse("Energy is on a scale of 1 to 5. Where would you put it?")
		}
		checkIn.Energy = int(energy)
	}
	if sleep, ok := skills.NumberArg(call.Params, "sleep_hours"); ok {
		if sleep < 0 || sleep > 24 {
			return nil, skills.Refuse("How many hours did you sleep?")
		}
		checkIn.SleepHours = sleep
	}

	created, err := s.repo.UpsertCheckIn(ctx, checkIn)
	if err != nil {
		return nil, fmt.Errorf("failed to save check-in: %w", err)
	}

	msg := "Thanks for checking in."
	if !created {
		msg = "I've updated today's check-in."
	}
	return &skills.Outcome{
		Message: msg,
		Crisis:  checkIn.Crisis,
		Data: map[string]interface{}{
			"checkin_id": checkIn.ID,
			"mood":       mood,
			"updated":    !created,
		},
	}, nil
}

func (s *Skill) updateLocation(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	if s.profiles == nil {
		return nil, fmt.Errorf("no profile store configured")
	}
	location := skills.StringArg(call.Params, "location")
	if err := s.profiles.SetActiveLocation(ctx, call.UserID, location); err != nil {
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return &skills.Outcome{
		Message: fmt.Sprintf("Got it, you're at %s.", location),
		Data:    map[string]interface{}{"location": location},
	}, nil
}

// Reminders

func (s *Skill) createReminder(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	category := skills.StringArg(call.Params, "category")
	if category == "" {
		category = "general"
	}

	reminder := &Reminder{
		UserID:    call.UserID,
		Title:     skills.StringArg(call.Params, "title"),
		Category:  category,
		Schedule:  skills.StringArg(call.Params, "schedule"),
		TimeOfDay: skills.StringArg(call.Params, "time"),
	}

	if at := skills.StringArg(call.Params, "remind_at"); at != "" {
		remindAt, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return nil, skills.Refuse("I couldn't work out when to remind you. When should it be?")
		}
		if !remindAt.After(call.Now) {
			return nil, skills.Refuse("That time has already passed. When should I remind you?")
		}
		remindAt = remindAt.UTC()
		reminder.RemindAt = &remindAt
		reminder.NextFireAt = &remindAt
	} else {
		if err := scheduleRecurring(reminder, call.Params); err != nil {
			return nil, err
		}
		next, ok := NextFire(reminder, call.Now)
		if !ok {
			return nil, skills.Refuse("I couldn't work out the schedule for that reminder. How often should it repeat?")
		}
		next = next.UTC()
		reminder.NextFireAt = &next
	}

	if err := s.repo.CreateReminder(ctx, reminder); err != nil {
		return nil, fmt.Errorf("failed to create reminder: %w", err)
	}

	next := reminder.NextFireAt.In(call.Now.Location())
	return &skills.Outcome{
		Message: fmt.Sprintf("Reminder set: %s, next on %s.", reminder.Title, next.Format("Mon Jan 2 at 15:04")),
		Data: map[string]interface{}{
			"reminder_id":  reminder.ID,
			"cron_spec":    reminder.CronSpec,
			"next_fire_at": reminder.NextFireAt.Format(time.RFC3339),
			"recurring":    reminder.Recurring(),
		},
	}, nil
}

// scheduleRecurring fills the cron spec or interval from the derived
// schedule parameters.
func scheduleRecurring(reminder *Reminder, params map[string]interface{}) error {
	tod := extract.DefaultReminderTime
	if reminder.TimeOfDay != "" {
		parsed, ok := extract.ParseTimeOfDay(reminder.TimeOfDay)
		if !ok {
			return skills.Refuse("I couldn't read the time %q. What time should the reminder go off?", reminder.TimeOfDay)
		}
		tod = parsed
	}
	reminder.TimeOfDay = tod.String()

	// a one-day interval is the same as a daily cron spec
	if interval, ok := skills.NumberArg(params, "interval_days"); ok && interval >= 2 {
		reminder.IntervalDays = int(interval)
		return nil
	}

	spec := fmt.Sprintf("%d %d * * *", tod.Minute, tod.Hour)
	if days := skills.IntSliceArg(params, "days"); len(days) > 0 && len(days) < 7 {
		parts := make([]string, 0, len(days))
		for _, d := range days {
			if d < 0 || d > 6 {
				return skills.Refuse("I couldn't tell which days you meant. Which days should it repeat?")
			}
			parts = append(parts, fmt.Sprint(d))
		}
		spec = fmt.Sprintf("%d %d * * %s", tod.Minute, tod.Hour, strings.Join(parts, ","))
	}
	reminder.CronSpec = spec
	return nil
}

func (s *Skill) deleteReminder(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	ref := skills.StringArg(call.Params, "reminder")

	reminder, err := s.repo.FindReminder(ctx, call.UserID, ref)
	if err != nil {
		return nil, fmt.Errorf("failed to look up reminder: %w", err)
	}
	if reminder == nil {
		return nil, skills.Refuse("I couldn't find a reminder called %q. Which one should I remove?", ref)
	}

	if err := s.repo.DeleteReminder(ctx, call.UserID, reminder.ID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, skills.Refuse("That reminder is already gone.")
		}
		return nil, fmt.Errorf("failed to delete reminder: %w", err)
	}

	return &skills.Outcome{
		Message: fmt.Sprintf("Removed the reminder %q.", reminder.Title),
		Data:    map[string]interface{}{"reminder_id": reminder.ID},
	}, nil
}

// Care records

func (s *Skill) addCareLog(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	entry := &CareLogEntry{
		UserID:     call.UserID,
		EntryType:  skills.StringArg(call.Params, "entry_type"),
		Content:    skills.StringArg(call.Params, "content"),
		Severity:   skills.StringArg(call.Params, "severity"),
		OccurredAt: skills.StringArg(call.Params, "occurred_at"),
	}
	if err := s.repo.AddCareLogEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("failed to add care log entry: %w", err)
	}
	return &skills.Outcome{
		Message: fmt.Sprintf("Added a %s to your care log.", entry.EntryType),
		Data:    map[string]interface{}{"entry_id": entry.ID},
	}, nil
}

func (s *Skill) recordVisitOutcome(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	p := call.Params
	provider := skills.StringArg(p, "provider")
	summary := skills.StringArg(p, "summary")

	var content strings.Builder
	content.WriteString(summary)
	if diagnoses := skills.StringSliceArg(p, "diagnoses"); len(diagnoses) > 0 {
		content.WriteString("\nDiagnoses: " + strings.Join(diagnoses, ", "))
	}
	changes := skills.StringSliceArg(p, "medication_changes")
	if len(changes) > 0 {
		content.WriteString("\nMedication changes: " + strings.Join(changes, ", "))
	}

	visit := &Visit{
		Note: &CareLogEntry{
			UserID:     call.UserID,
			EntryType:  "visit",
			Content:    content.String(),
			OccurredAt: DayKey(call.Now),
		},
	}

	if followUp := skills.StringArg(p, "follow_up_date"); followUp != "" {
		date, err := time.ParseInLocation("2006-01-02", followUp, call.Now.Location())
		if err != nil {
			return nil, skills.Refuse("I couldn't read the follow-up date. When is the follow-up?")
		}
		title := "Follow-up visit"
		if provider != "" {
			title = "Follow-up with " + provider
		}
		visit.FollowUp = &ClinicalDate{
			UserID: call.UserID,
			Title:  title,
			Kind:   "follow_up",
			Date:   date,
		}
	}

	for _, text := range skills.StringSliceArg(p, "recommendations") {
		if text == "" {
			continue
		}
		rec := &Recommendation{UserID: call.UserID, Text: text, Category: "general", Source: provider}
		if parsed, ok := extract.ExtractRecommendation(text); ok {
			rec.Category = parsed.Category
			if parsed.Cadence != nil {
				rec.Cadence = parsed.Cadence.Summary()
			}
		}
		visit.Recommendations = append(visit.Recommendations, rec)
	}

	if err := s.repo.RecordVisit(ctx, visit); err != nil {
		return nil, fmt.Errorf("failed to record visit: %w", err)
	}

	parts := []string{"Saved the visit notes"}
	if visit.FollowUp != nil {
		parts = append(parts, "follow-up on "+visit.FollowUp.Date.Format("Mon Jan 2"))
	}
	if n := len(visit.Recommendations); n > 0 {
		parts = append(parts, fmt.Sprintf("%d recommendation(s)", n))
	}

	data := map[string]interface{}{
		"visit_id":        visit.Note.ID,
		"recommendations": len(visit.Recommendations),
	}
	if len(changes) > 0 {
		data["medication_changes"] = changes
	}
	return &skills.Outcome{
		Message: strings.Join(parts, ", ") + ".",
		Data:    data,
	}, nil
}

func (s *Skill) addClinicalDate(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	iso := skills.StringArg(call.Params, "date_iso")
	date, err := time.Parse(time.RFC3339, iso)
	if err != nil {
		return nil, skills.Refuse("I couldn't work out the date. When is it?")
	}

	kind := skills.StringArg(call.Params, "kind")
	if kind == "" {
		kind = "appointment"
	}
	cd := &ClinicalDate{
		UserID:   call.UserID,
		Title:    skills.StringArg(call.Params, "title"),
		Kind:     kind,
		Date:     date,
		Location: skills.StringArg(call.Params, "location"),
	}
	if err := s.repo.AddClinicalDate(ctx, cd); err != nil {
		return nil, fmt.Errorf("failed to add clinical date: %w", err)
	}

	return &skills.Outcome{
		Message: fmt.Sprintf("Saved %s on %s.", cd.Title, date.Format("Mon Jan 2, 2006")),
		Data:    map[string]interface{}{"clinical_date_id": cd.ID, "date": date.Format(time.RFC3339)},
	}, nil
}

func (s *Skill) saveRecommendation(ctx context.Context, call skills.Call) (*skills.Outcome, error) {
	category := skills.StringArg(call.Params, "category")
	if category == "" {
		category = "general"
	}
	rec := &Recommendation{
		UserID:   call.UserID,
		Text:     skills.StringArg(call.Params, "text"),
		Category: category,
		Cadence:  skills.StringArg(call.Params, "cadence"),
		Source:   skills.StringArg(call.Params, "source"),
	}
	if err := s.repo.SaveRecommendation(ctx, rec); err != nil {
		return nil, fmt.Errorf("failed to save recommendation: %w", err)
	}
	return &skills.Outcome{
		Message: "Saved that recommendation.",
		Data:    map[string]interface{}{"recommendation_id": rec.ID, "category": category},
	}, nil
}

// resolveTime anchors a spoken time ("8am", "this morning") to the most
// recent matching moment at or before now. Unreadable phrases mean now.
func resolveTime(phrase string, now time.Time) time.Time {
	if phrase == "" {
		return now
	}
	tod, ok := extract.ParseTimeOfDay(phrase)
	if !ok {
		return now
	}

	at := time.Date(now.Year(), now.Month(), now.Day(), tod.Hour, tod.Minute, 0, 0, now.Location())
	if extract.ContainsWord(phrase, "yesterday") {
		return at.AddDate(0, 0, -1)
	}
	if at.After(now) {
		at = at.AddDate(0, 0, -1)
	}
	return at
}

package health

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/gorm"
)

// Repository is the persistence surface the health bindings and the context
// assembler read and write through.
type Repository interface {
	AddMedication(ctx context.Context, med *Medication) error
	FindMedication(ctx context.Context, userID, name string) (*Medication, error)
	ListMedications(ctx context.Context, userID string) ([]Medication, error)
	RecordMedicationEvent(ctx context.Context, event *MedicationEvent) error
	LastMedicationEvent(ctx context.Context, userID string) (*MedicationEvent, error)
	MedicationEventsSince(ctx context.Context, userID string, since time.Time) ([]MedicationEvent, error)

	UpsertCheckIn(ctx context.Context, checkIn *CheckIn) (created bool, err error)
	CheckInsSince(ctx context.Context, userID, sinceDay string) ([]CheckIn, error)
	LastCheckIn(ctx context.Context, userID string) (*CheckIn, error)

	SaveVitalReading(ctx context.Context, reading *VitalReading) error
	LatestVitalReading(ctx context.Context, userID string) (*VitalReading, error)

	AddHydrationEntry(ctx context.Context, entry *HydrationEntry) error
	HydrationForDay(ctx context.Context, userID, day string) ([]HydrationEntry, error)

	CreateReminder(ctx context.Context, reminder *Reminder) error
	FindReminder(ctx context.Context, userID, idOrTitle string) (*Reminder, error)
	DeleteReminder(ctx context.Context, userID, id string) error
	DueReminders(ctx context.Context, now time.Time) ([]Reminder, error)
	UpdateReminderSchedule(ctx context.Context, reminder *Reminder) error

	AddCareLogEntry(ctx context.Context, entry *CareLogEntry) error
	AddClinicalDate(ctx context.Context, date *ClinicalDate) error
	UpcomingClinicalDates(ctx context.Context, userID string, from time.Time, limit int) ([]ClinicalDate, error)
	SaveRecommendation(ctx context.Context, rec *Recommendation) error
	ListRecommendations(ctx context.Context, userID string) ([]Recommendation, error)
	RecordVisit(ctx context.Context, visit *Visit) error
}

// Store handles health data persistence
type Store struct {
	db *gorm.DB
}

var _ Repository = (*Store)(nil)

// NewStore creates a new health store
func NewStore(db *gorm.DB) (*Store, error) {
	store := &Store{db: db}

	if err := db.AutoMigrate(
		&Medication{}, &MedicationEvent{}, &CheckIn{}, &VitalReading{}, &HydrationEntry{},
		&Reminder{}, &CareLogEntry{}, &ClinicalDate{}, &Recommendation{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate health schemas: %w", err)
	}

	return store, nil
}

func generateID(prefix string) string {
	bytes := make([]byte, 8)
	rand.Read(bytes)
	return prefix + "_" + hex.EncodeToString(bytes)
}

// Medication operations

func (s *Store) AddMedication(ctx context.Context, med *Medication) error {
	if med.ID == "" {
		med.ID = generateID("med")
	}

	if len(med.Times) > 0 {
		timesJSON, _ := json.Marshal(med.Times)
		med.TimesJSON = string(timesJSON)
	}
	if len(med.DaysOfWeek) > 0 {
		daysJSON, _ := json.Marshal(med.DaysOfWeek)
		med.DaysJSON = string(daysJSON)
	}

	med.Active = true
	return s.db.WithContext(ctx).Create(med).Error
}

// minPrefixMatch is the shortest name tried as a prefix
const minPrefixMatch = 3

var likeEscaper = strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`)

// FindMedication matches an active medication by name, ignoring case. An
// exact match wins over a prefix match ("metformin" for "metformin er").
// LIKE wildcards in name are matched literally.
func (s *Store) FindMedication(ctx context.Context, userID, name string) (*Medication, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return nil, nil
	}

	var med Medication
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND LOWER(name) = ?", userID, true, name).
		First(&med).Error
	if errors.Is(err, gorm.ErrRecordNotFound) && len(name) >= minPrefixMatch {
		err = s.db.WithContext(ctx).
			Where(`user_id = ? AND active = ? AND LOWER(name) LIKE ? ESCAPE '\'`, userID, true, likeEscaper.Replace(name)+"%").
			Order("created_at ASC").
			First(&med).Error
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	decodeMedication(&med)
	return &med, nil
}

func (s *Store) ListMedications(ctx context.Context, userID string) ([]Medication, error) {
	var meds []Medication
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ?", userID, true).
		Order("name ASC").
		Find(&meds).Error
	for i := range meds {
		decodeMedication(&meds[i])
	}
	return meds, err
}

func decodeMedication(med *Medication) {
	if med.TimesJSON != "" {
		json.Unmarshal([]byte(med.TimesJSON), &med.Times)
	}
	if med.DaysJSON != "" {
		json.Unmarshal([]byte(med.DaysJSON), &med.DaysOfWeek)
	}
}

func (s *Store) RecordMedicationEvent(ctx context.Context, event *MedicationEvent) error {
	if event.ID == "" {
		event.ID = generateID("mevt")
	}
	return s.db.WithContext(ctx).Create(event).Error
}

func (s *Store) LastMedicationEvent(ctx context.Context, userID string) (*MedicationEvent, error) {
	var event MedicationEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("occurred_at DESC").
		First(&event).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &event, err
}

func (s *Store) MedicationEventsSince(ctx context.Context, userID string, since time.Time) ([]MedicationEvent, error) {
	var events []MedicationEvent
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND occurred_at >= ?", userID, since.UTC()).
		Order("occurred_at ASC").
		Find(&events).Error
	return events, err
}

// Check-in operations

// UpsertCheckIn writes the check-in for its day, replacing the fields of an
// existing one. It reports whether a new row was created.
func (s *Store) UpsertCheckIn(ctx context.Context, checkIn *CheckIn) (bool, error) {
	created := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing CheckIn
		err := tx.Where("user_id = ? AND day = ?", checkIn.UserID, checkIn.Day).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			if checkIn.ID == "" {
				checkIn.ID = generateID("chk")
			}
			created = true
			return tx.Create(checkIn).Error
		}
		if err != nil {
			return err
		}

		checkIn.ID = existing.ID
		checkIn.CreatedAt = existing.CreatedAt
		return tx.Model(&existing).Select("mood", "energy", "sleep_hours", "notes", "crisis").Updates(checkIn).Error
	})
	return created, err
}

// CheckInsSince returns check-ins on or after sinceDay (YYYY-MM-DD), oldest first
func (s *Store) CheckInsSince(ctx context.Context, userID, sinceDay string) ([]CheckIn, error) {
	var checkIns []CheckIn
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day >= ?", userID, sinceDay).
		Order("day ASC").
		Find(&checkIns).Error
	return checkIns, err
}

func (s *Store) LastCheckIn(ctx context.Context, userID string) (*CheckIn, error) {
	var checkIn CheckIn
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("day DESC").
		First(&checkIn).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &checkIn, err
}

// Vitals operations

func (s *Store) SaveVitalReading(ctx context.Context, reading *VitalReading) error {
	if reading.ID == "" {
		reading.ID = generateID("bp")
	}
	return s.db.WithContext(ctx).Create(reading).Error
}

func (s *Store) LatestVitalReading(ctx context.Context, userID string) (*VitalReading, error) {
	var reading VitalReading
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("measured_at DESC").
		First(&reading).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &reading, err
}

// Hydration operations

func (s *Store) AddHydrationEntry(ctx context.Context, entry *HydrationEntry) error {
	if entry.ID == "" {
		entry.ID = generateID("h2o")
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) HydrationForDay(ctx context.Context, userID, day string) ([]HydrationEntry, error) {
	var entries []HydrationEntry
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND day = ?", userID, day).
		Order("logged_at ASC, running_total_ml ASC").
		Find(&entries).Error
	return entries, err
}

// Reminder operations

func (s *Store) CreateReminder(ctx context.Context, reminder *Reminder) error {
	if reminder.ID == "" {
		reminder.ID = generateID("rem")
	}
	reminder.Active = true
	return s.db.WithContext(ctx).Create(reminder).Error
}

// FindReminder looks a reminder up by id, then by title ignoring case
func (s *Store) FindReminder(ctx context.Context, userID, idOrTitle string) (*Reminder, error) {
	idOrTitle = strings.TrimSpace(idOrTitle)

	var reminder Reminder
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND active = ? AND (id = ? OR LOWER(title) = ?)", userID, true, idOrTitle, strings.ToLower(idOrTitle)).
		Order("created_at ASC").
		First(&reminder).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	return &reminder, err
}

// DeleteReminder removes a reminder the user owns. Deleting someone else's
// reminder affects nothing and reports not found.
func (s *Store) DeleteReminder(ctx context.Context, userID, id string) error {
	result := s.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).Delete(&Reminder{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// DueReminders returns active reminders whose next fire time has passed
func (s *Store) DueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	var reminders []Reminder
	err := s.db.WithContext(ctx).
		Where("active = ? AND next_fire_at IS NOT NULL AND next_fire_at <= ?", true, now.UTC()).
		Order("next_fire_at ASC").
		Find(&reminders).Error
	return reminders, err
}

func (s *Store) UpdateReminderSchedule(ctx context.Context, reminder *Reminder) error {
	return s.db.WithContext(ctx).Model(&Reminder{}).
		Where("id = ?", reminder.ID).
		Updates(map[string]interface{}{
			"next_fire_at": reminder.NextFireAt,
			"active":       reminder.Active,
			"updated_at":   time.Now(),
		}).Error
}

// Care record operations

func (s *Store) AddCareLogEntry(ctx context.Context, entry *CareLogEntry) error {
	if entry.ID == "" {
		entry.ID = generateID("care")
	}
	return s.db.WithContext(ctx).Create(entry).Error
}

func (s *Store) AddClinicalDate(ctx context.Context, date *ClinicalDate) error {
	if date.ID == "" {
		date.ID = generateID("cdate")
	}
	date.Date = date.Date.UTC()
	return s.db.WithContext(ctx).Create(date).Error
}

func (s *Store) UpcomingClinicalDates(ctx context.Context, userID string, from time.Time, limit int) ([]ClinicalDate, error) {
	var dates []ClinicalDate
	query := s.db.WithContext(ctx).
		Where("user_id = ? AND date >= ?", userID, from.UTC()).
		Order("date ASC")
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Find(&dates).Error
	return dates, err
}

func (s *Store) SaveRecommendation(ctx context.Context, rec *Recommendation) error {
	if rec.ID == "" {
		rec.ID = generateID("rec")
	}
	return s.db.WithContext(ctx).Create(rec).Error
}

func (s *Store) ListRecommendations(ctx context.Context, userID string) ([]Recommendation, error) {
	var recs []Recommendation
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&recs).Error
	return recs, err
}

// RecordVisit writes a visit's note, follow-up date and recommendations in
// one transaction, all tagged with the note's id.
func (s *Store) RecordVisit(ctx context.Context, visit *Visit) error {
	if visit.Note == nil {
		return fmt.Errorf("visit without a note")
	}
	if visit.Note.ID == "" {
		visit.Note.ID = generateID("visit")
	}
	visitID := visit.Note.ID

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		visit.Note.VisitID = visitID
		if err := tx.Create(visit.Note).Error; err != nil {
			return err
		}

		if visit.FollowUp != nil {
			if visit.FollowUp.ID == "" {
				visit.FollowUp.ID = generateID("cdate")
			}
			visit.FollowUp.VisitID = visitID
			visit.FollowUp.Date = visit.FollowUp.Date.UTC()
			if err := tx.Create(visit.FollowUp).Error; err != nil {
				return err
			}
		}

		for _, rec := range visit.Recommendations {
			if rec.ID == "" {
				rec.ID = generateID("rec")
			}
			rec.VisitID = visitID
			if err := tx.Create(rec).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

package health

import (
	"context"
	"database/sql"
	"testing"
	"time"

	_ "github.com/glebarez/go-sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(sqlite.Dialector{Conn: sqlDB}, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db
}

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(setupTestDB(t))
	require.NoError(t, err)
	return store
}

func TestStore_Medications(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	med := &Medication{
		UserID: "user_123",
		Name:   "Metformin ER",
		Dosage: "500mg",
		Times:  []string{"08:00", "20:00"},
	}
	require.NoError(t, store.AddMedication(ctx, med))
	assert.NotEmpty(t, med.ID)
	require.NoError(t, store.AddMedication(ctx, &Medication{UserID: "user_123", Name: "Aspirin"}))
	require.NoError(t, store.AddMedication(ctx, &Medication{UserID: "other", Name: "Lisinopril"}))

	found, err := store.FindMedication(ctx, "user_123", "metformin er")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, med.ID, found.ID)
	assert.Equal(t, []string{"08:00", "20:00"}, found.Times)

	found, err = store.FindMedication(ctx, "user_123", "METFORMIN")
	require.NoError(t, err)
	require.NotNil(t, found, "prefix match should find the extended-release entry")

	found, err = store.FindMedication(ctx, "user_123", "lisinopril")
	require.NoError(t, err)
	assert.Nil(t, found, "another user's medication must not match")

	meds, err := store.ListMedications(ctx, "user_123")
	require.NoError(t, err)
	require.Len(t, meds, 2)
	assert.Equal(t, "Aspirin", meds[0].Name)
}

func TestStore_FindMedication_Wildcards(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	require.NoError(t, store.AddMedication(ctx, &Medication{UserID: "user_123", Name: "Aspirin"}))
	require.NoError(t, store.AddMedication(ctx, &Medication{UserID: "user_123", Name: "Vitamin_D 1000IU"}))

	for _, name := range []string{"%", "a", "as", "%%%", "___", "asp_rin", "%irin"} {
		found, err := store.FindMedication(ctx, "user_123", name)
		require.NoError(t, err)
		assert.Nil(t, found, "%q must not match", name)
	}

	found, err := store.FindMedication(ctx, "user_123", "asp")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, "Aspirin", found.Name)

	found, err = store.FindMedication(ctx, "user_123", "vitamin_d")
	require.NoError(t, err)
	require.NotNil(t, found, "a literal underscore still matches")
	assert.Equal(t, "Vitamin_D 1000IU", found.Name)
}

func TestStore_MedicationEvents(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	base := time.Date(2024, 1, 15, 8, 0, 0, 0, time.UTC)

	last, err := store.LastMedicationEvent(ctx, "user_123")
	require.NoError(t, err)
	assert.Nil(t, last)

	for i, status := range []string{StatusTaken, StatusMissed, StatusTaken} {
		require.NoError(t, store.RecordMedicationEvent(ctx, &MedicationEvent{
			UserID:         "user_123",
			MedicationName: "Aspirin",
			Status:         status,
			OccurredAt:     base.Add(time.Duration(i) * time.Hour),
		}))
	}

	last, err = store.LastMedicationEvent(ctx, "user_123")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, base.Add(2*time.Hour), last.OccurredAt.UTC())

	events, err := store.MedicationEventsSince(ctx, "user_123", base.Add(30*time.Minute))
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.InDelta(t, 50.0, CalculateAdherence(events), 0.001)
}

func TestStore_UpsertCheckIn(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)

	created, err := store.UpsertCheckIn(ctx, &CheckIn{UserID: "user_123", Day: "2024-01-15", Mood: "good", Energy: 4})
	require.NoError(t, err)
	assert.True(t, created)

	created, err = store.UpsertCheckIn(ctx, &CheckIn{UserID: "user_123", Day: "2024-01-15", Mood: "low", Energy: 2})
	require.NoError(t, err)
	assert.False(t, created)

	_, err = store.UpsertCheckIn(ctx, &CheckIn{UserID: "user_123", Day: "2024-01-10", Mood: "okay"})
	require.NoError(t, err)

	checkIns, err := store.CheckInsSince(ctx, "user_123", "2024-01-09")
	require.NoError(t, err)
	require.Len(t, checkIns, 2)
	assert.Equal(t, "2024-01-10", checkIns[0].Day)
	assert.Equal(t, "low", checkIns[1].Mood)
	assert.Equal(t, 2, checkIns[1].Energy)

	last, err := store.LastCheckIn(ctx, "user_123")
	require.NoError(t, err)
	require.NotNil(t, last)
	assert.Equal(t, "2024-01-15", last.Day)
}

func TestStore_Reminders(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	due := &Reminder{UserID: "user_123", Title: "Take metformin", CronSpec: "0 9 * * *", NextFireAt: &past}
	later := &Reminder{UserID: "user_123", Title: "Walk", NextFireAt: &future}
	require.NoError(t, store.CreateReminder(ctx, due))
	require.NoError(t, store.CreateReminder(ctx, later))

	found, err := store.FindReminder(ctx, "user_123", "take METFORMIN")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, due.ID, found.ID)

	found, err = store.FindReminder(ctx, "user_123", later.ID)
	require.NoError(t, err)
	require.NotNil(t, found)

	reminders, err := store.DueReminders(ctx, now)
	require.NoError(t, err)
	require.Len(t, reminders, 1)
	assert.Equal(t, due.ID, reminders[0].ID)

	Advance(&reminders[0], now)
	require.NoError(t, store.UpdateReminderSchedule(ctx, &reminders[0]))
	reminders, err = store.DueReminders(ctx, now)
	require.NoError(t, err)
	assert.Empty(t, reminders)

	assert.Error(t, store.DeleteReminder(ctx, "someone_else", due.ID))
	require.NoError(t, store.DeleteReminder(ctx, "user_123", due.ID))
	found, err = store.FindReminder(ctx, "user_123", due.ID)
	require.NoError(t, err)
	assert.Nil(t, found)
}

func TestStore_RecordVisit(t *testing.T) {
	ctx := context.Background()
	store := setupTestStore(t)
	followUp := time.Date(2024, 4, 14, 0, 0, 0, 0, time.UTC)

	visit := &Visit{
		Note:     &CareLogEntry{UserID: "user_123", EntryType: "visit", Content: "BP check"},
		FollowUp: &ClinicalDate{UserID: "user_123", Title: "Follow-up", Kind: "follow_up", Date: followUp},
		Recommendations: []*Recommendation{
			{UserID: "user_123", Text: "walk daily", Category: "exercise"},
			{UserID: "user_123", Text: "less salt", Category: "diet"},
		},
	}
	require.NoError(t, store.RecordVisit(ctx, visit))

	dates, err := store.UpcomingClinicalDates(ctx, "user_123", followUp.AddDate(0, 0, -1), 5)
	require.NoError(t, err)
	require.Len(t, dates, 1)
	assert.Equal(t, visit.Note.ID, dates[0].VisitID)

	recs, err := store.ListRecommendations(ctx, "user_123")
	require.NoError(t, err)
	require.Len(t, recs, 2)
	for _, r := range recs {
		assert.Equal(t, visit.Note.ID, r.VisitID)
	}

	assert.Error(t, store.RecordVisit(ctx, &Visit{}))
}

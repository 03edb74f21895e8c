package memory

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gmsas95/myrai-care/internal/capability"
	"github.com/gmsas95/myrai-care/internal/config"
	"github.com/gmsas95/myrai-care/internal/llm"
	"github.com/gmsas95/myrai-care/internal/metrics"
	"github.com/gmsas95/myrai-care/internal/persona"
	"github.com/gmsas95/myrai-care/internal/skills/health"
	"github.com/gmsas95/myrai-care/internal/store"
)

// ProfileReader loads the long-term profile
type ProfileReader interface {
	EnsureUser(ctx context.Context, userID string) (*store.User, error)
}

// ConversationStore reads recent turns and keeps the rolling summary
type ConversationStore interface {
	ActiveConversation(ctx context.Context, userID string) (*store.Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]store.Message, error)
	MessagesSince(ctx context.Context, conversationID string, seq int64) ([]store.Message, error)
	GetSummary(ctx context.Context, conversationID string) (*store.ConversationSummary, error)
	SaveSummary(ctx context.Context, summary *store.ConversationSummary) error
}

// HealthReader is the read-only slice of the health repository
type HealthReader interface {
	ListMedications(ctx context.Context, userID string) ([]health.Medication, error)
	LastMedicationEvent(ctx context.Context, userID string) (*health.MedicationEvent, error)
	MedicationEventsSince(ctx context.Context, userID string, since time.Time) ([]health.MedicationEvent, error)
	LastCheckIn(ctx context.Context, userID string) (*health.CheckIn, error)
	CheckInsSince(ctx context.Context, userID, sinceDay string) ([]health.CheckIn, error)
}

// Sources is every read the assembler makes, plus the summary write
type Sources interface {
	ProfileReader
	ConversationStore
	HealthReader
}

// StoreSources joins the conversation store and the health repository
type StoreSources struct {
	*store.Store
	health.Repository
}

var _ Sources = StoreSources{}

// Options tunes the assembler
type Options struct {
	ShortTermTurns int
	MoodTrendDays  int
	Policy         SummaryPolicy
	Summarizer     llm.Completer
	Catalog        *capability.Registry
	Identity       *persona.Identity
	Location       *time.Location
	Logger         *zap.Logger
	Metrics        *metrics.Metrics
	Now            func() time.Time
}

// OptionsFromConfig fills the tunables from memory settings
func OptionsFromConfig(cfg config.MemoryConfig) Options {
	return Options{
		ShortTermTurns: cfg.ShortTermTurns,
		MoodTrendDays:  cfg.MoodTrendDays,
		Policy:         PolicyFromConfig(cfg),
	}
}

// Assembler builds a Context for every turn
type Assembler struct {
	src        Sources
	shortTerm  int
	moodDays   int
	policy     SummaryPolicy
	summarizer llm.Completer
	catalog    *capability.Registry
	identity   persona.Identity
	clock      *persona.TimeAwareness
	logger     *zap.Logger
	metrics    *metrics.Metrics
	now        func() time.Time
}

// New creates an assembler. A nil Summarizer disables summary refresh.
func New(src Sources, opts Options) *Assembler {
	a := &Assembler{
		src:        src,
		shortTerm:  opts.ShortTermTurns,
		moodDays:   opts.MoodTrendDays,
		policy:     opts.Policy,
		summarizer: opts.Summarizer,
		catalog:    opts.Catalog,
		identity:   persona.DefaultIdentity,
		clock:      persona.NewTimeAwareness(opts.Location),
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		now:        opts.Now,
	}
	if a.shortTerm <= 0 {
		a.shortTerm = 10
	}
	if a.moodDays <= 0 {
		a.moodDays = 7
	}
	if a.policy.RefreshAfterMessages <= 0 {
		a.policy = PolicyFromConfig(config.MemoryConfig{})
	}
	if opts.Identity != nil {
		a.identity = *opts.Identity
	}
	if a.logger == nil {
		a.logger = zap.NewNop()
	}
	if a.now == nil {
		a.now = time.Now
	}
	return a
}

// Assemble loads all three tiers concurrently, adds the intent-gated detail
// and applies the summary policy. Nothing is cached between turns.
func (a *Assembler) Assemble(ctx context.Context, userID, message string) (*Context, error) {
	now := a.now()
	intents := DetectIntents(message, a.policy.TopicKeywords, a.policy.CrisisKeywords)

	var (
		user      *store.User
		meds      []health.Medication
		lastEvent *health.MedicationEvent
		lastCheck *health.CheckIn
		conv      *store.Conversation
		recent    []store.Message
		summary   *store.ConversationSummary
		trend     []health.CheckIn
		events    []health.MedicationEvent
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		user, err = a.src.EnsureUser(gctx, userID)
		return wrap("load profile", err)
	})
	g.Go(func() error {
		var err error
		meds, err = a.src.ListMedications(gctx, userID)
		return wrap("load medications", err)
	})
	g.Go(func() error {
		var err error
		lastEvent, err = a.src.LastMedicationEvent(gctx, userID)
		return wrap("load last medication", err)
	})
	g.Go(func() error {
		var err error
		lastCheck, err = a.src.LastCheckIn(gctx, userID)
		return wrap("load last check-in", err)
	})
	g.Go(func() error {
		var err error
		if conv, err = a.src.ActiveConversation(gctx, userID); err != nil {
			return wrap("load conversation", err)
		}
		if recent, err = a.src.RecentMessages(gctx, conv.ID, a.shortTerm); err != nil {
			return wrap("load recent messages", err)
		}
		summary, err = a.src.GetSummary(gctx, conv.ID)
		return wrap("load summary", err)
	})
	if intents.Mood {
		g.Go(func() error {
			since := health.DayKey(now.AddDate(0, 0, -(a.moodDays - 1)))
			var err error
			trend, err = a.src.CheckInsSince(gctx, userID, since)
			return wrap("load mood trend", err)
		})
	}
	if intents.Medication {
		g.Go(func() error {
			var err error
			events, err = a.src.MedicationEventsSince(gctx, userID, now.AddDate(0, 0, -7))
			return wrap("load medication history", err)
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	mc := &Context{
		UserID:         userID,
		ConversationID: conv.ID,
		Now:            now,
		Intents:        intents,
		MessageCount:   conv.MessageCount,
	}

	mc.LongTerm = LongTerm{
		FirstName:         user.FirstName,
		Personality:       user.Personality,
		Conditions:        user.Conditions,
		RelationshipStage: user.RelationshipStage,
		InteractionCount:  user.InteractionCount,
	}
	for _, m := range meds {
		mc.LongTerm.Medications = append(mc.LongTerm.Medications, MedicationFact{Name: m.Name, Dosage: m.Dosage, Schedule: m.Schedule})
	}

	mc.Working = Working{
		ActiveLocation:  user.ActiveLocation,
		EmergencyActive: user.EmergencyActive,
		LastMedication:  eventView(lastEvent),
	}
	if lastCheck != nil {
		mc.Working.LastCheckInDate = lastCheck.Day
		if lastCheck.Day == health.DayKey(now) {
			mc.Working.TodayMood = lastCheck.Mood
		}
	}

	for _, m := range recent {
		mc.ShortTerm = append(mc.ShortTerm, Turn{Role: m.Role, Content: m.Content, At: m.CreatedAt})
	}

	if summary != nil {
		mc.Summary = summary.Summary
		mc.SummaryWatermark = summary.Watermark
	}

	if intents.Mood {
		for _, c := range trend {
			mc.MoodTrend = append(mc.MoodTrend, MoodPoint{Day: c.Day, Mood: c.Mood, Energy: c.Energy})
		}
	}
	if intents.Medication {
		detail := &MedicationDetail{Adherence: health.CalculateAdherence(events)}
		for i := range events {
			v := eventView(&events[i])
			detail.Recent = append(detail.Recent, *v)
			if events[i].Status == health.StatusTaken {
				detail.LastTaken = v
			}
		}
		mc.LastMedication = detail
	}

	mc.SummaryDecision = a.policy.Decide(SummaryState{
		Summary:         mc.Summary,
		Watermark:       mc.SummaryWatermark,
		MessageCount:    mc.MessageCount,
		UserMessage:     message,
		EmergencyActive: mc.Working.EmergencyActive,
	})
	if mc.SummaryDecision.Refresh && a.summarizer != nil {
		a.refreshSummary(ctx, mc)
	}

	return mc, nil
}

// refreshSummary folds the messages after the watermark into the summary.
// On any failure the previous summary stays in place.
func (a *Assembler) refreshSummary(ctx context.Context, mc *Context) {
	trigger := mc.SummaryDecision.Trigger
	fail := func(msg string, err error) {
		a.metrics.RecordSummaryRefresh(trigger, false)
		a.logger.Warn(msg,
			zap.String("conversation_id", mc.ConversationID),
			zap.String("trigger", trigger),
			zap.Error(err),
		)
	}

	msgs, err := a.src.MessagesSince(ctx, mc.ConversationID, mc.SummaryWatermark)
	if err != nil {
		fail("Failed to load messages for summary", err)
		return
	}
	if len(msgs) == 0 {
		return
	}

	text, err := a.summarizer.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: summarySystemPrompt,
		UserMessage:  summaryPrompt(mc.Summary, msgs),
		MaxTokens:    300,
	})
	if err != nil {
		fail("Summary generation failed, keeping previous summary", err)
		return
	}
	text = strings.TrimSpace(text)
	if text == "" {
		fail("Summary generation returned nothing, keeping previous summary", nil)
		return
	}

	watermark := msgs[len(msgs)-1].Seq
	if err := a.src.SaveSummary(ctx, &store.ConversationSummary{
		ConversationID: mc.ConversationID,
		UserID:         mc.UserID,
		Summary:        text,
		Watermark:      watermark,
	}); err != nil {
		fail("Failed to save summary", err)
		return
	}

	mc.Summary = text
	mc.SummaryWatermark = watermark
	a.metrics.RecordSummaryRefresh(trigger, true)
	a.logger.Debug("Refreshed conversation summary",
		zap.String("conversation_id", mc.ConversationID),
		zap.String("trigger", trigger),
		zap.Int64("watermark", watermark),
	)
}

// maxSummaryInput bounds the transcript sent for summarizing, in bytes
const maxSummaryInput = 4000

// tail keeps the last n bytes of s without splitting a rune
func tail(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := len(s) - n
	for cut < len(s) && !utf8.RuneStart(s[cut]) {
		cut++
	}
	return s[cut:]
}

const summarySystemPrompt = "You summarize conversations between a health companion and the person it cares for. Be accurate and brief."

func summaryPrompt(previous string, msgs []store.Message) string {
	var convo []string
	for _, m := range msgs {
		if m.Role == llm.RoleUser || m.Role == llm.RoleAssistant {
			convo = append(convo, fmt.Sprintf("%s: %s", m.Role, m.Content))
		}
	}
	text := strings.Join(convo, "\n")
	text = tail(text, maxSummaryInput)

	prev := previous
	if prev == "" {
		prev = "(none yet)"
	}

	return fmt.Sprintf(`Update the running summary of this conversation. Focus on:
- Health facts shared (symptoms, readings, medications taken or missed)
- How the person has been feeling
- Appointments, follow-ups and doctor recommendations
- Anything they asked to be reminded about

Previous summary:
%s

New messages:
%s

Provide the updated summary (2-5 sentences):`, prev, text)
}

// History converts the short-term tier to chat messages
func (mc *Context) History() []llm.Message {
	msgs := make([]llm.Message, 0, len(mc.ShortTerm))
	for _, t := range mc.ShortTerm {
		if t.Role != llm.RoleUser && t.Role != llm.RoleAssistant {
			continue
		}
		msgs = append(msgs, llm.Message{Role: t.Role, Content: t.Content})
	}
	return msgs
}

func eventView(e *health.MedicationEvent) *MedicationEvent {
	if e == nil {
		return nil
	}
	return &MedicationEvent{Name: e.MedicationName, Status: e.Status, OccurredAt: e.OccurredAt}
}

func wrap(what string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", what, err)
}

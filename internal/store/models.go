package store

import (
	"crypto/rand"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Relationship stages, from first contact to long familiarity
const (
	StageNew        = "new"
	StageAcquainted = "acquainted"
	StageFamiliar   = "familiar"
	StageTrusted    = "trusted"
)

// User is the long-term profile of one person the assistant cares for
type User struct {
	ID                string          `gorm:"primaryKey" json:"id"`
	FirstName         string          `json:"first_name"`
	DisplayName       string          `json:"display_name"`
	Personality       string          `json:"personality"` // warm, cheerful, calm, direct
	Conditions        []string        `json:"conditions" gorm:"-"`
	ConditionsJSON    string          `json:"-" gorm:"type:text"`
	RelationshipStage string          `json:"relationship_stage"`
	InteractionCount  int             `json:"interaction_count"`
	ActiveLocation    string          `json:"active_location"`
	EmergencyActive   bool            `json:"emergency_active"`
	Preferences       json.RawMessage `json:"preferences" gorm:"type:text"`
	CreatedAt         time.Time       `json:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"`
}

// Conversation represents a chat conversation
type Conversation struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	UserID       string    `gorm:"index" json:"user_id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	IsArchived   bool      `json:"is_archived"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relationships
	Messages []Message `json:"messages,omitempty" gorm:"foreignKey:ConversationID"`
}

// Message represents a chat message
type Message struct {
	ID             string          `gorm:"primaryKey" json:"id"`
	ConversationID string          `gorm:"index:idx_conv_seq" json:"conversation_id"`
	Seq            int64           `gorm:"index:idx_conv_seq" json:"seq"`
	Role           string          `json:"role"` // user, assistant
	Content        string          `json:"content" gorm:"type:text"`
	ToolResults    json.RawMessage `json:"tool_results,omitempty" gorm:"type:text"`
	LatencyMs      int             `json:"latency_ms"`
	CreatedAt      time.Time       `json:"created_at"`
}

// ConversationSummary is the rolling summary of a conversation. Watermark is
// the message count the summary covers.
type ConversationSummary struct {
	ConversationID string    `gorm:"primaryKey" json:"conversation_id"`
	UserID         string    `gorm:"index" json:"user_id"`
	Summary        string    `json:"summary" gorm:"type:text"`
	Watermark      int64     `json:"watermark"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// BeforeCreate hook for User
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if len(u.Preferences) == 0 {
		u.Preferences = json.RawMessage(`{}`)
	}
	if u.RelationshipStage == "" {
		u.RelationshipStage = StageNew
	}
	return nil
}

// BeforeSave hook for User
func (u *User) BeforeSave(tx *gorm.DB) error {
	if u.Conditions != nil {
		u.ConditionsJSON = string(ToJSON(u.Conditions))
	}
	return nil
}

// AfterFind hook for User
func (u *User) AfterFind(tx *gorm.DB) error {
	if u.ConditionsJSON != "" {
		return FromJSON(json.RawMessage(u.ConditionsJSON), &u.Conditions)
	}
	return nil
}

// BeforeCreate hook for Conversation
func (c *Conversation) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = generateID("conv")
	}
	return nil
}

// BeforeCreate hook for Message
func (m *Message) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = generateID("msg")
	}
	return nil
}

// StageFor maps an interaction count to a relationship stage
func StageFor(interactions int) string {
	switch {
	case interactions >= 100:
		return StageTrusted
	case interactions >= 20:
		return StageFamiliar
	case interactions >= 5:
		return StageAcquainted
	default:
		return StageNew
	}
}

// generateID creates a unique ID with nanosecond precision
func generateID(prefix string) string {
	return prefix + "_" + time.Now().Format("20060102150405") + "_" + randomString(8)
}

// randomString generates a cryptographically secure random string
func randomString(n int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, n)
	rand.Read(b)
	for i := range b {
		b[i] = letters[int(b[i])%len(letters)]
	}
	return string(b)
}

// ToJSON converts struct to JSON bytes
func ToJSON(v interface{}) json.RawMessage {
	b, _ := json.Marshal(v)
	return b
}

// FromJSON parses JSON bytes into struct
func FromJSON(data json.RawMessage, v interface{}) error {
	return json.Unmarshal(data, v)
}

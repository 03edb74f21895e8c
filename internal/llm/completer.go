// Package llm talks to completion providers. The rest of the system only
// depends on text in, text out through Completer.
package llm

import (
	"context"
	"strings"
	"sync"
)

// Roles used in conversation history
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// CompletionRequest is one generate-text call
type CompletionRequest struct {
	SystemPrompt string
	History      []Message
	UserMessage  string
	MaxTokens    int
	Temperature  float64
}

// Messages flattens the request into chat messages
func (r CompletionRequest) Messages() []Message {
	msgs := make([]Message, 0, len(r.History)+2)
	if r.SystemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: r.SystemPrompt})
	}
	msgs = append(msgs, r.History...)
	if r.UserMessage != "" {
		msgs = append(msgs, Message{Role: RoleUser, Content: r.UserMessage})
	}
	return msgs
}

// Completer generates assistant text
type Completer interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// CompleterFunc adapts a function to Completer
type CompleterFunc func(ctx context.Context, req CompletionRequest) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	return f(ctx, req)
}

// Scripted replays canned replies in order and records every request. When
// the script runs out the last reply repeats. Used by tests and the offline
// chat mode.
type Scripted struct {
	mu       sync.Mutex
	replies  []string
	errs     []error
	requests []CompletionRequest
}

// NewScripted creates a completer returning replies in order
func NewScripted(replies ...string) *Scripted {
	return &Scripted{replies: replies}
}

// FailNext queues an error for the next call
func (s *Scripted) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.errs = append(s.errs, err)
}

// Push appends replies to the script
func (s *Scripted) Push(replies ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, replies...)
}

func (s *Scripted) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = append(s.requests, req)

	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	switch len(s.replies) {
	case 0:
		return "", nil
	case 1:
		return s.replies[0], nil
	}
	reply := s.replies[0]
	s.replies = s.replies[1:]
	return reply, nil
}

// Requests returns a copy of every request seen so far
func (s *Scripted) Requests() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CompletionRequest(nil), s.requests...)
}

// Echo is an offline completer that repeats the user's message back. It lets
// the CLI run without any provider configured.
var Echo = CompleterFunc(func(_ context.Context, req CompletionRequest) (string, error) {
	return "You said: " + strings.TrimSpace(req.UserMessage), nil
})

package support

import (
	"context"
	"errors"
	"time"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/catalog"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
)

var (
	ErrSessionNotFound = errors.New("support: session not found")
	ErrSessionEnded    = errors.New("support: session ended")
	ErrTooManySessions = errors.New("support: too many active sessions")
	ErrMalformedReply  = errors.New("support: malformed model reply")
)

type Sender string

const (
	SenderClient Sender = "client"
	SenderAI     Sender = "ai"
)

// Message is one archived turn.
type Message struct {
	ID        int64
	SessionID string
	Sender    Sender
	Text      string
	Category  string
	Reason    string
	Step      *string
	CreatedAt int64
}

// Repo is the transcript archive.
type Repo interface {
	SaveMessage(ctx context.Context, msg *Message) error
	GetHistory(ctx context.Context, sessionID string) ([]Message, error)
}

// Handoff is the note sent to human support when a session escalates.
type Handoff struct {
	SessionID    string          `json:"session_id"`
	Product      string          `json:"product,omitempty"`
	Reason       string          `json:"reason"`
	OfferedSteps int             `json:"offered_steps"`
	Steps        []dialogue.Step `json:"steps"`
	Tail         []dialogue.Turn `json:"transcript_tail"`
	At           time.Time       `json:"at"`
}

type Outbound interface {
	NotifyEscalation(ctx context.Context, h Handoff) error
}

type GenerateRequest struct {
	Decision   dialogue.Decision
	Documents  []knowledge.Document
	Transcript dialogue.Transcript
	Product    catalog.ProductID
}

type Reply struct {
	Text string
	// Step is the single troubleshooting step the reply proposes, if any.
	Step string
}

// Generator renders a decision into customer-facing text.
type Generator interface {
	Generate(ctx context.Context, req GenerateRequest) (Reply, error)
}

// Recorder receives per-turn observations. metrics.Collector implements it.
type Recorder interface {
	SessionStarted()
	SessionEnded()
	Decision(category, reason string)
	Retrieval(status string)
	Turn(d time.Duration)
	Escalation()
}

type SessionView struct {
	ID        string          `json:"id"`
	Turns     []dialogue.Turn `json:"turns"`
	State     dialogue.State  `json:"state"`
	CreatedAt time.Time       `json:"created_at"`
}

type TurnResult struct {
	SessionID string            `json:"session_id"`
	Reply     string            `json:"reply"`
	Category  dialogue.Category `json:"category"`
	Reason    dialogue.Reason   `json:"reason"`
	Step      string            `json:"step,omitempty"`
	State     dialogue.State    `json:"state"`
}

type Service interface {
	StartSession(ctx context.Context) (SessionView, error)
	HandleUtterance(ctx context.Context, sessionID, text string) (TurnResult, error)
	Snapshot(ctx context.Context, sessionID string) (SessionView, error)
	EndSession(ctx context.Context, sessionID string) error
}

type nopRecorder struct{}

func (nopRecorder) SessionStarted()         {}
func (nopRecorder) SessionEnded()           {}
func (nopRecorder) Decision(string, string) {}
func (nopRecorder) Retrieval(string)        {}
func (nopRecorder) Turn(time.Duration)      {}
func (nopRecorder) Escalation()             {}

type nopOutbound struct{}

func (nopOutbound) NotifyEscalation(context.Context, Handoff) error { return nil }

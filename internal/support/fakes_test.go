package support

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
)

type fakeRetriever struct {
	mu      sync.Mutex
	queries []string
	docs    []knowledge.Document
	err     error
}

func (f *fakeRetriever) Search(_ context.Context, query string, _ int) ([]knowledge.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries = append(f.queries, query)
	return f.docs, f.err
}

func (f *fakeRetriever) Queries() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.queries...)
}

type fakeGenerator struct {
	mu    sync.Mutex
	reqs  []GenerateRequest
	reply func(ctx context.Context, n int, req GenerateRequest) (Reply, error)
}

func (f *fakeGenerator) Generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	n := len(f.reqs)
	fn := f.reply
	f.mu.Unlock()
	if fn == nil {
		return Reply{Text: "ok"}, nil
	}
	return fn(ctx, n, req)
}

func (f *fakeGenerator) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func (f *fakeGenerator) Last() GenerateRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reqs[len(f.reqs)-1]
}

// distinctSteps proposes a new step on every call.
func distinctSteps(_ context.Context, n int, _ GenerateRequest) (Reply, error) {
	step := fmt.Sprintf("Check part number %d", n)
	return Reply{Text: step + ". Let me know how it goes.", Step: step}, nil
}

type fakeRepo struct {
	mu   sync.Mutex
	msgs []Message
	err  error
}

func (f *fakeRepo) SaveMessage(_ context.Context, msg *Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.msgs = append(f.msgs, *msg)
	return nil
}

func (f *fakeRepo) GetHistory(_ context.Context, sessionID string) ([]Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []Message
	for _, m := range f.msgs {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeOutbound struct {
	mu       sync.Mutex
	handoffs []Handoff
}

func (f *fakeOutbound) NotifyEscalation(_ context.Context, h Handoff) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handoffs = append(f.handoffs, h)
	return errors.New("desk offline")
}

func (f *fakeOutbound) Count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.handoffs)
}

type fakeRecorder struct {
	mu          sync.Mutex
	active      int
	decisions   map[string]int
	retrievals  map[string]int
	turns       int
	escalations int
}

func newFakeRecorder() *fakeRecorder {
	return &fakeRecorder{decisions: map[string]int{}, retrievals: map[string]int{}}
}

func (f *fakeRecorder) SessionStarted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active++
}

func (f *fakeRecorder) SessionEnded() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.active--
}

func (f *fakeRecorder) Decision(category, reason string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decisions[category+"/"+reason]++
}

func (f *fakeRecorder) Retrieval(status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retrievals[status]++
}

func (f *fakeRecorder) Turn(time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.turns++
}

func (f *fakeRecorder) Escalation() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.escalations++
}

package support

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Vovarama1992/waterdrop-support-agent/internal/dialogue"
	"github.com/Vovarama1992/waterdrop-support-agent/internal/knowledge"
)

const DefaultGreeting = "Hello! I'm the Waterdrop support assistant. Which Waterdrop product model do you have? You can find it on the product label, for example WD-A1 or WD-G3P600-W."

const fallbackTemplate = "I'm sorry, I can't answer that right now. Please contact our support team: %s"

type Config struct {
	TopK      int    `mapstructure:"top_k"`
	Greeting  string `mapstructure:"greeting"`
	MaxActive int    `mapstructure:"-"`
	// turns attached to a handoff note
	HandoffTail    int           `mapstructure:"handoff_tail"`
	ArchiveTimeout time.Duration `mapstructure:"archive_timeout"`
}

type Deps struct {
	Engine    *dialogue.Engine
	Tracker   *dialogue.Tracker
	Retriever knowledge.Retriever // nil when no knowledge base is configured
	Generator Generator
	Repo      Repo // nil disables the archive
	Outbound  Outbound
	Recorder  Recorder
	Logger    *zap.Logger
}

// session owns one transcript. turnMu serializes turns; mu guards the
// transcript so snapshots never wait on an in-flight turn.
type session struct {
	id        string
	createdAt time.Time

	ctx    context.Context
	cancel context.CancelFunc

	turnMu     sync.Mutex
	mu         sync.RWMutex
	transcript dialogue.Transcript
}

func (s *session) current() dialogue.Transcript {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.transcript
}

type SessionService struct {
	cfg       Config
	engine    *dialogue.Engine
	tracker   *dialogue.Tracker
	retriever knowledge.Retriever
	generator Generator
	repo      Repo
	outbound  Outbound
	recorder  Recorder
	logger    *zap.Logger
	now       func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

var _ Service = (*SessionService)(nil)

func NewService(cfg Config, deps Deps) *SessionService {
	if cfg.TopK <= 0 {
		cfg.TopK = 4
	}
	if cfg.Greeting == "" {
		cfg.Greeting = DefaultGreeting
	}
	if cfg.HandoffTail <= 0 {
		cfg.HandoffTail = 10
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 3 * time.Second
	}
	if deps.Engine == nil {
		deps.Engine = dialogue.NewEngine(dialogue.DefaultPolicyConfig(), nil)
	}
	if deps.Tracker == nil {
		deps.Tracker = dialogue.NewTracker(nil)
	}
	if deps.Outbound == nil {
		deps.Outbound = nopOutbound{}
	}
	if deps.Recorder == nil {
		deps.Recorder = nopRecorder{}
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}

	return &SessionService{
		cfg:       cfg,
		engine:    deps.Engine,
		tracker:   deps.Tracker,
		retriever: deps.Retriever,
		generator: deps.Generator,
		repo:      deps.Repo,
		outbound:  deps.Outbound,
		recorder:  deps.Recorder,
		logger:    deps.Logger.With(zap.String("component", "support")),
		now:       time.Now,
		sessions:  make(map[string]*session),
	}
}

func (s *SessionService) StartSession(ctx context.Context) (SessionView, error) {
	s.mu.Lock()
	if s.cfg.MaxActive > 0 && len(s.sessions) >= s.cfg.MaxActive {
		s.mu.Unlock()
		return SessionView{}, ErrTooManySessions
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	sess := &session{
		id:        uuid.NewString(),
		createdAt: s.now(),
		ctx:       sessCtx,
		cancel:    cancel,
	}
	greeting := dialogue.Turn{
		Role:     dialogue.RoleAssistant,
		Text:     s.cfg.Greeting,
		Category: dialogue.CategoryClarify,
		Reason:   dialogue.ReasonGreeting,
		At:       sess.createdAt,
	}
	sess.transcript = dialogue.NewTranscript(greeting)
	s.sessions[sess.id] = sess
	s.mu.Unlock()

	s.recorder.SessionStarted()
	s.archive(ctx, sess.id, greeting)
	s.logger.Info("session started", zap.String("session_id", sess.id))

	return s.view(sess), nil
}

func (s *SessionService) HandleUtterance(ctx context.Context, sessionID, text string) (TurnResult, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return TurnResult{}, err
	}

	sess.turnMu.Lock()
	defer sess.turnMu.Unlock()

	if sess.ctx.Err() != nil {
		return TurnResult{}, ErrSessionEnded
	}

	turnCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	stop := context.AfterFunc(sess.ctx, cancel)
	defer stop()

	start := s.now()
	log := s.logger.With(zap.String("session_id", sessionID))

	userTurn := dialogue.Turn{Role: dialogue.RoleUser, Text: text, At: start}
	tr := sess.current().Append(userTurn)
	st := s.tracker.Derive(tr)

	d := s.engine.Decide(dialogue.Input{
		Utterance:          text,
		State:              st,
		RetrievalAvailable: s.retriever != nil,
	})

	var docs []knowledge.Document
	if d.NeedsRetrieval() {
		var rerr error
		docs, rerr = s.retriever.Search(turnCtx, d.Query, s.cfg.TopK)
		switch {
		case rerr != nil:
			s.recorder.Retrieval("error")
			log.Warn("retrieval failed", zap.String("query", d.Query), zap.Error(rerr))
		case len(docs) == 0:
			s.recorder.Retrieval("empty")
		default:
			s.recorder.Retrieval("hit")
		}
		d = s.engine.Ground(d, len(docs), rerr)
	}

	reply, d := s.respond(turnCtx, log, d, docs, tr, st)

	if sess.ctx.Err() != nil {
		return TurnResult{}, ErrSessionEnded
	}
	if err := ctx.Err(); err != nil {
		return TurnResult{}, err
	}

	assistantTurn := dialogue.Turn{
		Role:     dialogue.RoleAssistant,
		Text:     reply.Text,
		Category: d.Category,
		Reason:   d.Reason,
		Step:     reply.Step,
		At:       s.now(),
	}

	sess.mu.Lock()
	sess.transcript = tr.Append(assistantTurn)
	committed := sess.transcript
	sess.mu.Unlock()

	s.recorder.Decision(string(d.Category), string(d.Reason))
	s.recorder.Turn(s.now().Sub(start))
	log.Info("turn",
		zap.String("category", string(d.Category)),
		zap.String("reason", string(d.Reason)),
		zap.Int("offered_steps", st.OfferedSteps),
		zap.Int("documents", len(docs)),
	)

	s.archive(ctx, sessionID, userTurn, assistantTurn)

	after := s.tracker.Derive(committed)
	if d.Category == dialogue.CategoryEscalate && !st.Escalated {
		s.recorder.Escalation()
		s.handoff(ctx, log, sessionID, d, after, committed)
	}

	return TurnResult{
		SessionID: sessionID,
		Reply:     reply.Text,
		Category:  d.Category,
		Reason:    d.Reason,
		Step:      reply.Step,
		State:     after,
	}, nil
}

// respond produces the assistant reply. It may replace the decision when the
// generated step repeats one already offered.
func (s *SessionService) respond(
	ctx context.Context,
	log *zap.Logger,
	d dialogue.Decision,
	docs []knowledge.Document,
	tr dialogue.Transcript,
	st dialogue.State,
) (Reply, dialogue.Decision) {
	if d.Fixed != "" {
		return Reply{Text: d.Fixed}, d
	}

	reply, err := s.generate(ctx, GenerateRequest{
		Decision:   d,
		Documents:  docs,
		Transcript: tr,
		Product:    st.KnownProduct,
	})
	if err != nil {
		if ctx.Err() == nil {
			log.Warn("generation failed", zap.String("reason", string(d.Reason)), zap.Error(err))
		}
		return Reply{Text: fmt.Sprintf(fallbackTemplate, s.engine.Config().Contact)}, d
	}

	if !d.OffersStep() {
		reply.Step = ""
		return reply, d
	}
	if reply.Step != "" && offered(st, reply.Step) {
		log.Info("generator repeated an offered step", zap.String("step", reply.Step))
		esc := s.engine.Escalate(dialogue.ReasonDuplicateStep)
		return Reply{Text: esc.Fixed}, esc
	}
	return reply, d
}

func (s *SessionService) generate(ctx context.Context, req GenerateRequest) (Reply, error) {
	if s.generator == nil {
		return Reply{}, errors.New("support: no generator configured")
	}
	return s.generator.Generate(ctx, req)
}

func offered(st dialogue.State, step string) bool {
	key := dialogue.NormalizeStep(step)
	for _, s := range st.Steps {
		if dialogue.NormalizeStep(s.Description) == key {
			return true
		}
	}
	return false
}

func (s *SessionService) Snapshot(_ context.Context, sessionID string) (SessionView, error) {
	sess, err := s.lookup(sessionID)
	if err != nil {
		return SessionView{}, err
	}
	return s.view(sess), nil
}

// EndSession discards the session and cancels any turn still in flight.
func (s *SessionService) EndSession(_ context.Context, sessionID string) error {
	s.mu.Lock()
	sess, ok := s.sessions[sessionID]
	if ok {
		delete(s.sessions, sessionID)
	}
	s.mu.Unlock()

	if !ok {
		return ErrSessionNotFound
	}
	sess.cancel()
	s.recorder.SessionEnded()
	s.logger.Info("session ended",
		zap.String("session_id", sessionID),
		zap.Int("turns", sess.current().Len()),
	)
	return nil
}

// Close ends every active session.
func (s *SessionService) Close() {
	s.mu.Lock()
	ids := make([]string, 0, len(s.sessions))
	for id := range s.sessions {
		ids = append(ids, id)
	}
	s.mu.Unlock()

	for _, id := range ids {
		_ = s.EndSession(context.Background(), id)
	}
}

func (s *SessionService) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionService) lookup(id string) (*session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return sess, nil
}

func (s *SessionService) view(sess *session) SessionView {
	tr := sess.current()
	return SessionView{
		ID:        sess.id,
		Turns:     tr.Turns(),
		State:     s.tracker.Derive(tr),
		CreatedAt: sess.createdAt,
	}
}

func (s *SessionService) archive(ctx context.Context, sessionID string, turns ...dialogue.Turn) {
	if s.repo == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ArchiveTimeout)
	defer cancel()

	for _, t := range turns {
		msg := &Message{
			SessionID: sessionID,
			Sender:    SenderClient,
			Text:      t.Text,
			Category:  string(t.Category),
			Reason:    string(t.Reason),
			CreatedAt: t.At.Unix(),
		}
		if t.Role == dialogue.RoleAssistant {
			msg.Sender = SenderAI
		}
		if t.Step != "" {
			step := t.Step
			msg.Step = &step
		}
		if err := s.repo.SaveMessage(ctx, msg); err != nil {
			s.logger.Warn("archive failed", zap.String("session_id", sessionID), zap.Error(err))
			return
		}
	}
}

func (s *SessionService) handoff(
	ctx context.Context,
	log *zap.Logger,
	sessionID string,
	d dialogue.Decision,
	st dialogue.State,
	tr dialogue.Transcript,
) {
	h := Handoff{
		SessionID:    sessionID,
		Product:      string(st.KnownProduct),
		Reason:       string(d.Reason),
		OfferedSteps: st.OfferedSteps,
		Steps:        st.Steps,
		Tail:         tr.Tail(s.cfg.HandoffTail),
		At:           s.now(),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.cfg.ArchiveTimeout)
	defer cancel()
	if err := s.outbound.NotifyEscalation(ctx, h); err != nil {
		log.Warn("handoff failed", zap.Error(err))
	}
}

package support

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type HandoffConfig struct {
	URL     string        `mapstructure:"url"`
	Token   string        `mapstructure:"token"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// HTTPOutbound posts escalation notes to the human support desk.
type HTTPOutbound struct {
	url    string
	token  string
	client *http.Client
	logger *zap.Logger
}

// NewOutbound returns a no-op Outbound when no handoff URL is configured.
func NewOutbound(cfg HandoffConfig, logger *zap.Logger) Outbound {
	if strings.TrimSpace(cfg.URL) == "" {
		return nopOutbound{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &HTTPOutbound{
		url:    strings.TrimSpace(cfg.URL),
		token:  strings.TrimSpace(cfg.Token),
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger.With(zap.String("component", "handoff")),
	}
}

type handoffNote struct {
	ID string `json:"id"`
	Handoff
}

func (o *HTTPOutbound) NotifyEscalation(ctx context.Context, h Handoff) error {
	note := handoffNote{ID: uuid.NewString(), Handoff: h}
	b, err := json.Marshal(note)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.url, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", note.ID)
	if o.token != "" {
		req.Header.Set("Authorization", "Bearer "+o.token)
	}

	resp, err := o.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("handoff api error: %s body=%s", resp.Status, string(body))
	}

	o.logger.Info("handoff sent",
		zap.String("session_id", h.SessionID),
		zap.String("handoff_id", note.ID),
	)
	return nil
}

package support

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOutbound_DisabledWithoutURL(t *testing.T) {
	out := NewOutbound(HandoffConfig{}, nil)
	assert.IsType(t, nopOutbound{}, out)
	assert.NoError(t, out.NotifyEscalation(context.Background(), Handoff{}))
}

func TestHTTPOutbound_NotifyEscalation(t *testing.T) {
	var got map[string]any
	var auth, idem string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		idem = r.Header.Get("Idempotency-Key")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	out := NewOutbound(HandoffConfig{URL: srv.URL, Token: "desk-token"}, nil)
	err := out.NotifyEscalation(context.Background(), Handoff{
		SessionID:    "s-1",
		Product:      "WD-A1",
		Reason:       "escalation_threshold",
		OfferedSteps: 5,
	})
	require.NoError(t, err)

	assert.Equal(t, "Bearer desk-token", auth)
	assert.NotEmpty(t, idem)
	assert.Equal(t, idem, got["id"])
	assert.Equal(t, "s-1", got["session_id"])
	assert.Equal(t, "WD-A1", got["product"])
	assert.EqualValues(t, 5, got["offered_steps"])
}

func TestHTTPOutbound_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	err := NewOutbound(HandoffConfig{URL: srv.URL}, nil).NotifyEscalation(context.Background(), Handoff{SessionID: "s-1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

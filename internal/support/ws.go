package support

import (
	"context"
	"errors"
	"net/http"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"
)

const (
	wsTypeUtterance = "utterance"
	wsTypeEnd       = "end"
	wsTypeSession   = "session"
	wsTypeReply     = "reply"
	wsTypeError     = "error"
)

type wsInbound struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type wsOutbound struct {
	Type      string `json:"type"`
	SessionID string `json:"session_id,omitempty"`
	Reply     string `json:"reply,omitempty"`
	Category  string `json:"category,omitempty"`
	Reason    string `json:"reason,omitempty"`
	Step      string `json:"step,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ServeWS runs one session over a WebSocket. The session lives exactly as
// long as the connection; a closed socket cancels any turn in flight.
func (h *Handler) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket accept failed", zap.Error(err))
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	view, err := h.svc.StartSession(ctx)
	if err != nil {
		code := websocket.StatusInternalError
		if errors.Is(err, ErrTooManySessions) {
			code = websocket.StatusTryAgainLater
		}
		_ = conn.Close(code, err.Error())
		return
	}
	defer func() {
		_ = h.svc.EndSession(context.Background(), view.ID)
	}()
	log := h.logger.With(zap.String("session_id", view.ID))

	greeting := wsOutbound{Type: wsTypeSession, SessionID: view.ID}
	if n := len(view.Turns); n > 0 {
		greeting.Reply = view.Turns[n-1].Text
		greeting.Category = string(view.Turns[n-1].Category)
		greeting.Reason = string(view.Turns[n-1].Reason)
	}
	if err := wsjson.Write(ctx, conn, greeting); err != nil {
		return
	}

	// keep reading while a turn runs so a client close is noticed immediately
	inbox := make(chan wsInbound, 16)
	go func() {
		defer cancel()
		for {
			var in wsInbound
			if err := wsjson.Read(ctx, conn, &in); err != nil {
				return
			}
			select {
			case inbox <- in:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		var in wsInbound
		select {
		case <-ctx.Done():
			log.Debug("websocket closed")
			return
		case in = <-inbox:
		}

		switch in.Type {
		case wsTypeUtterance:
			res, err := h.svc.HandleUtterance(ctx, view.ID, in.Text)
			switch {
			case errors.Is(err, ErrSessionEnded), errors.Is(err, context.Canceled):
				return
			case err != nil:
				log.Warn("turn failed", zap.Error(err))
				if werr := wsjson.Write(ctx, conn, wsOutbound{Type: wsTypeError, Error: err.Error()}); werr != nil {
					return
				}
				continue
			}
			out := wsOutbound{
				Type:      wsTypeReply,
				SessionID: res.SessionID,
				Reply:     res.Reply,
				Category:  string(res.Category),
				Reason:    string(res.Reason),
				Step:      res.Step,
			}
			if err := wsjson.Write(ctx, conn, out); err != nil {
				return
			}
		case wsTypeEnd:
			_ = conn.Close(websocket.StatusNormalClosure, "session ended")
			return
		default:
			if err := wsjson.Write(ctx, conn, wsOutbound{Type: wsTypeError, Error: "unknown message type"}); err != nil {
				return
			}
		}
	}
}

package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"actionfigure/internal/pipeline"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPongTimeout  = 60 * time.Second
	wsPingInterval = 45 * time.Second
)

type sessionResponse struct {
	ID    string         `json:"id"`
	State pipeline.State `json:"state"`
}

type submitResponse struct {
	ID    string         `json:"id"`
	RunID string         `json:"run_id"`
	State pipeline.State `json:"state"`
}

func newUpgrader(origins []string) websocket.Upgrader {
	up := websocket.Upgrader{ReadBufferSize: 1024, WriteBufferSize: 4096}
	if len(origins) == 0 {
		return up
	}
	allow := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		if o == "*" {
			up.CheckOrigin = func(*http.Request) bool { return true }
			return up
		}
		allow[o] = struct{}{}
	}
	up.CheckOrigin = func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		_, ok := allow[origin]
		return ok
	}
	return up
}

func (a *App) session(w http.ResponseWriter, r *http.Request) (*pipeline.Orchestrator, bool) {
	id := chi.URLParam(r, "sessionID")
	o, ok := a.Sessions.Get(id)
	if !ok {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return nil, false
	}
	return o, true
}

func (a *App) CreateSession(w http.ResponseWriter, r *http.Request) {
	o, err := a.Sessions.Create()
	if err != nil {
		a.Logger.Error().Err(err).Msg("create session failed")
		a.error(w, http.StatusInternalServerError, "internal", "failed to create session")
		return
	}
	a.json(w, http.StatusCreated, sessionResponse{ID: o.ID(), State: o.State()})
}

func (a *App) GetSession(w http.ResponseWriter, r *http.Request) {
	o, ok := a.session(w, r)
	if !ok {
		return
	}
	a.json(w, http.StatusOK, sessionResponse{ID: o.ID(), State: o.State()})
}

// SubmitAttachment starts a new run in the session, replacing any active one.
func (a *App) SubmitAttachment(w http.ResponseWriter, r *http.Request) {
	o, ok := a.session(w, r)
	if !ok {
		return
	}
	att, instruction, err := readAttachment(w, r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	runID, err := o.Submit(r.Context(), att, instruction)
	if err != nil {
		a.sessionError(w, r, err)
		return
	}
	a.json(w, http.StatusAccepted, submitResponse{ID: o.ID(), RunID: runID, State: o.State()})
}

func (a *App) CancelSession(w http.ResponseWriter, r *http.Request) {
	o, ok := a.session(w, r)
	if !ok {
		return
	}
	if err := o.Cancel(r.Context()); err != nil {
		a.sessionError(w, r, err)
		return
	}
	a.json(w, http.StatusOK, sessionResponse{ID: o.ID(), State: o.State()})
}

// sessionError reports a closed session as 410; anything else, such as the
// client going away, goes through the kind mapping.
func (a *App) sessionError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, pipeline.ErrClosed) {
		a.error(w, http.StatusGone, "session_closed", "session is closed")
		return
	}
	a.fail(w, r, err)
}

func (a *App) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "sessionID")
	if !a.Sessions.Delete(id) {
		a.error(w, http.StatusNotFound, "not_found", "session not found")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SessionEvents streams every state change of a session over a websocket as
// JSON. The socket closes when the session is deleted or swept.
func (a *App) SessionEvents(w http.ResponseWriter, r *http.Request) {
	o, ok := a.session(w, r)
	if !ok {
		return
	}
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied with an HTTP error.
		a.Logger.Debug().Err(err).Str("session", o.ID()).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	states, unsubscribe := o.Subscribe(16)
	defer unsubscribe()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	go func() {
		// Reads only serve control frames; any error means the peer is gone.
		defer cancel()
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongTimeout))
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case st, ok := <-states:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "session closed"))
				return
			}
			if err := conn.WriteJSON(st); err != nil {
				return
			}
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

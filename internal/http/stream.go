package http

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

type streamPayload struct {
	Items   interface{} `json:"items"`
	CanEdit bool        `json:"canEdit"`
	Error   string      `json:"error,omitempty"`
}

// eventStream is an open server-sent events response.
type eventStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func openEventStream(w http.ResponseWriter) (*eventStream, bool) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming_unsupported")
		return nil, false
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()
	return &eventStream{w: w, flusher: flusher}, true
}

func (es *eventStream) send(event string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(es.w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	es.flusher.Flush()
	return nil
}

func (es *eventStream) keepAlive() error {
	if _, err := fmt.Fprint(es.w, ": keepalive\n\n"); err != nil {
		return err
	}
	es.flusher.Flush()
	return nil
}

// serveStream writes each snapshot as a server-sent event until the client
// goes away. Failed reloads are sent as "error" events carrying the last
// good items.
func serveStream[T any](w http.ResponseWriter, r *http.Request, sub *livelist.Subscription[T], keepAlive time.Duration, canEdit func() bool, view func([]T) interface{}, log logrus.FieldLogger) {
	defer sub.Unsubscribe()

	es, ok := openEventStream(w)
	if !ok {
		return
	}
	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-ticker.C:
			if es.keepAlive() != nil {
				return
			}
		case snap, ok := <-sub.Updates():
			if !ok {
				return
			}
			event := "snapshot"
			payload := streamPayload{Items: view(snap.Items), CanEdit: canEdit()}
			if snap.Err != nil {
				event = "error"
				payload.Error = "store_error"
			}
			if err := es.send(event, payload); err != nil {
				log.WithError(err).Debug("snapshot stream closed")
				return
			}
		}
	}
}

// handleStreamSession pushes the caller's session whenever its role changes,
// starting with the current one. Each keepalive tick rereads the shared
// store so changes made through other instances reach the client too.
func (s *Server) handleStreamSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := claimsFromContext(ctx).SessionID
	updates := s.sessions.Watch(ctx, id)

	es, ok := openEventStream(w)
	if !ok {
		return
	}
	last := s.sessions.Resolve(ctx, id)
	if es.send("session", viewSession(last)) != nil {
		return
	}

	ticker := time.NewTicker(s.cfg.StreamKeepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sessions.Resolve(ctx, id)
			if es.keepAlive() != nil {
				return
			}
		case sess, ok := <-updates:
			if !ok {
				return
			}
			if !sessionChanged(last, sess) {
				continue
			}
			last = sess
			if err := es.send("session", viewSession(sess)); err != nil {
				s.log.WithError(err).Debug("session stream closed")
				return
			}
		}
	}
}

func sessionChanged(a, b model.Session) bool {
	return a.Role != b.Role || a.Guest != b.Guest || a.Identity != b.Identity || !a.LastActive.Equal(b.LastActive)
}

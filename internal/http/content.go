package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/IsmaHaa12/smp-announcement/internal/livelist"
	"github.com/IsmaHaa12/smp-announcement/internal/model"
	"github.com/IsmaHaa12/smp-announcement/internal/notify"
)

const homeAnnouncements = 3

type listResponse struct {
	Items   interface{} `json:"items"`
	CanEdit bool        `json:"canEdit"`
}

type createdResponse struct {
	ID string `json:"id"`
}

type announcementRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Date     string `json:"date" validate:"required,max=32"`
	Category string `json:"category" validate:"max=50"`
	Content  string `json:"content" validate:"max=10000"`
}

type announcementPatchRequest struct {
	Title    *string `json:"title" validate:"omitempty,max=200"`
	Date     *string `json:"date" validate:"omitempty,max=32"`
	Category *string `json:"category" validate:"omitempty,max=50"`
	Content  *string `json:"content" validate:"omitempty,max=10000"`
}

type eventRequest struct {
	Title string `json:"title" validate:"required,max=200"`
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
}

type eventPatchRequest struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
	Date  *string `json:"date" validate:"omitempty,datetime=2006-01-02"`
}

type messageRequest struct {
	Recipient string `json:"recipient" validate:"required,max=254"`
	Title     string `json:"title" validate:"required,max=200"`
	Body      string `json:"body" validate:"required,max=5000"`
}

type messagePatchRequest struct {
	Title *string `json:"title" validate:"omitempty,max=200"`
	Body  *string `json:"body" validate:"omitempty,max=5000"`
}

func titleOfAnnouncement(a model.Announcement) string { return a.TitleText() }

func (s *Server) canEdit(r *http.Request) func() bool {
	return func() bool { return s.currentSession(r).CanEdit() }
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	items, err := s.feeds.Announcements.List(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if len(items) > homeAnnouncements {
		items = items[:homeAnnouncements]
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"school":        s.profile.Name,
		"announcements": viewAnnouncements(items),
	})
}

func (s *Server) handleListAnnouncements(w http.ResponseWriter, r *http.Request) {
	items, err := s.feeds.Announcements.List(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	items = livelist.Search(items, r.URL.Query().Get("q"), titleOfAnnouncement)
	writeJSON(w, http.StatusOK, listResponse{Items: viewAnnouncements(items), CanEdit: s.currentSession(r).CanEdit()})
}

func (s *Server) handleStreamAnnouncements(w http.ResponseWriter, r *http.Request) {
	sub, err := s.feeds.Announcements.Subscribe(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	query := r.URL.Query().Get("q")
	serveStream(w, r, sub, s.cfg.StreamKeepAlive, s.canEdit(r), func(items []model.Announcement) interface{} {
		return viewAnnouncements(livelist.Search(items, query, titleOfAnnouncement))
	}, s.log)
}

func (s *Server) handleCreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := s.feeds.Announcements.Create(r.Context(), s.currentSession(r).Role, model.Announcement{
		Title:       req.Title,
		DisplayDate: req.Date,
		Category:    req.Category,
		Content:     req.Content,
	})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handlePatchAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req announcementPatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	patch := model.AnnouncementPatch{Title: req.Title, DisplayDate: req.Date, Category: req.Category, Content: req.Content}
	if err := s.feeds.Announcements.Update(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id"), patch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteAnnouncement(w http.ResponseWriter, r *http.Request) {
	if err := s.feeds.Announcements.Delete(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleListEvents returns the agenda; with ?date= only that day's events,
// in the order they were added.
func (s *Server) handleListEvents(w http.ResponseWriter, r *http.Request) {
	items, err := s.feeds.Events.List(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	if date := r.URL.Query().Get("date"); date != "" {
		if _, err := time.Parse(model.DateLayout, date); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date")
			return
		}
		items = model.EventsOn(items, date)
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, CanEdit: s.currentSession(r).CanEdit()})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	items, err := s.feeds.Events.List(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"dates": model.GroupByDate(items)})
}

func (s *Server) handleStreamEvents(w http.ResponseWriter, r *http.Request) {
	sub, err := s.feeds.Events.Subscribe(r.Context(), nil)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	serveStream(w, r, sub, s.cfg.StreamKeepAlive, s.canEdit(r), func(items []model.Event) interface{} {
		if items == nil {
			return []model.Event{}
		}
		return items
	}, s.log)
}

func (s *Server) handleCreateEvent(w http.ResponseWriter, r *http.Request) {
	var req eventRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	id, err := s.feeds.Events.Create(r.Context(), s.currentSession(r).Role, model.Event{Title: req.Title, Date: req.Date})
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) handlePatchEvent(w http.ResponseWriter, r *http.Request) {
	var req eventPatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	patch := model.EventPatch{Title: req.Title, Date: req.Date}
	if err := s.feeds.Events.Update(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id"), patch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteEvent(w http.ResponseWriter, r *http.Request) {
	if err := s.feeds.Events.Delete(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// messageFilter limits a student to their own messages. Guests have none.
func (s *Server) messageFilter(r *http.Request) (func(model.StudentMessage) bool, bool) {
	sess := s.currentSession(r)
	if sess.Role == model.RoleGuest {
		return nil, false
	}
	return func(m model.StudentMessage) bool { return m.VisibleTo(sess) }, true
}

func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.messageFilter(r)
	if !ok {
		writeError(w, http.StatusForbidden, "students_only")
		return
	}
	items, err := s.feeds.Messages.List(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, listResponse{Items: items, CanEdit: s.currentSession(r).CanEdit()})
}

func (s *Server) handleStreamMessages(w http.ResponseWriter, r *http.Request) {
	filter, ok := s.messageFilter(r)
	if !ok {
		writeError(w, http.StatusForbidden, "students_only")
		return
	}
	sub, err := s.feeds.Messages.Subscribe(r.Context(), filter)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	serveStream(w, r, sub, s.cfg.StreamKeepAlive, s.canEdit(r), func(items []model.StudentMessage) interface{} {
		if items == nil {
			return []model.StudentMessage{}
		}
		return items
	}, s.log)
}

func (s *Server) handleCreateMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	msg := model.StudentMessage{Recipient: req.Recipient, Title: req.Title, Body: req.Body}
	id, err := s.feeds.Messages.Create(r.Context(), s.currentSession(r).Role, msg)
	if err != nil {
		s.writeStoreError(w, err)
		return
	}
	go s.notifyStudent(msg.Normalize())
	writeJSON(w, http.StatusCreated, createdResponse{ID: id})
}

func (s *Server) notifyStudent(msg model.StudentMessage) {
	if s.mailer == nil {
		return
	}
	notice, ok := notify.StudentNotice(msg)
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.mailer.Send(ctx, notice); err != nil {
		s.log.WithError(err).WithField("recipient", notice.To).Warn("student notification failed")
	}
}

func (s *Server) handlePatchMessage(w http.ResponseWriter, r *http.Request) {
	var req messagePatchRequest
	if !decodeAndValidate(w, r, &req) {
		return
	}
	patch := model.MessagePatch{Title: req.Title, Body: req.Body}
	if err := s.feeds.Messages.Update(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id"), patch); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDeleteMessage(w http.ResponseWriter, r *http.Request) {
	if err := s.feeds.Messages.Delete(r.Context(), s.currentSession(r).Role, chi.URLParam(r, "id")); err != nil {
		s.writeStoreError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

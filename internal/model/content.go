package model

import (
	"strings"
	"time"
)

const DefaultCategory = "Umum"

const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04"
)

type Announcement struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	DisplayDate string `json:"date"`
	Category    string `json:"category"`
	Content     string `json:"content,omitempty"`
}

type AnnouncementPatch struct {
	Title       *string `json:"title"`
	DisplayDate *string `json:"date"`
	Category    *string `json:"category"`
	Content     *string `json:"content"`
}

func (a Announcement) Key() string { return a.ID }

func (a Announcement) WithID(id string) Announcement {
	a.ID = id
	return a
}

func (a Announcement) Apply(p AnnouncementPatch) Announcement {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.DisplayDate != nil {
		a.DisplayDate = *p.DisplayDate
	}
	if p.Category != nil {
		a.Category = *p.Category
	}
	if p.Content != nil {
		a.Content = *p.Content
	}
	return a
}

func (a Announcement) TitleText() string { return a.Title }

// Normalize trims the fields and fills defaults before a record is stored.
func (a Announcement) Normalize() Announcement {
	a.Title = strings.TrimSpace(a.Title)
	a.DisplayDate = strings.TrimSpace(a.DisplayDate)
	if strings.TrimSpace(a.Category) == "" {
		a.Category = DefaultCategory
	}
	return a
}

func (a Announcement) Valid() bool {
	if a.Title == "" {
		return false
	}
	_, ok := ParseDisplayDate(a.DisplayDate)
	return ok
}

// ParseDisplayDate accepts the calendar date and the date+time forms
// announcements have been stored with.
func ParseDisplayDate(value string) (time.Time, bool) {
	value = strings.TrimSpace(value)
	for _, layout := range []string{DateLayout, DateTimeLayout, time.RFC3339} {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed, true
		}
	}
	return time.Time{}, false
}

// AnnouncementNewerFirst orders by display date descending. Unparseable
// dates sort last.
func AnnouncementNewerFirst(a, b Announcement) bool {
	ta, okA := ParseDisplayDate(a.DisplayDate)
	tb, okB := ParseDisplayDate(b.DisplayDate)
	switch {
	case okA && okB:
		return ta.After(tb)
	case okA:
		return true
	default:
		return false
	}
}

type Event struct {
	ID    string `json:"id"`
	Title string `json:"title"`
	Date  string `json:"date"`
}

type EventPatch struct {
	Title *string `json:"title"`
	Date  *string `json:"date"`
}

func (e Event) Key() string { return e.ID }

func (e Event) WithID(id string) Event {
	e.ID = id
	return e
}

func (e Event) Apply(p EventPatch) Event {
	if p.Title != nil {
		e.Title = *p.Title
	}
	if p.Date != nil {
		e.Date = *p.Date
	}
	return e
}

func (e Event) TitleText() string { return e.Title }

func (e Event) Normalize() Event {
	e.Title = strings.TrimSpace(e.Title)
	e.Date = strings.TrimSpace(e.Date)
	return e
}

func (e Event) Valid() bool {
	if e.Title == "" {
		return false
	}
	_, err := time.Parse(DateLayout, e.Date)
	return err == nil
}

func EventNewerFirst(a, b Event) bool {
	return a.Date > b.Date
}

// EventsOn returns the events of one calendar day, keeping the order they
// were given in.
func EventsOn(events []Event, date string) []Event {
	out := []Event{}
	for _, event := range events {
		if event.Date == date {
			out = append(out, event)
		}
	}
	return out
}

// GroupByDate builds the calendar markers: every date with at least one
// event maps to its events.
func GroupByDate(events []Event) map[string][]Event {
	grouped := make(map[string][]Event)
	for _, event := range events {
		grouped[event.Date] = append(grouped[event.Date], event)
	}
	return grouped
}

type StudentMessage struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Title     string    `json:"title"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

type MessagePatch struct {
	Title *string `json:"title"`
	Body  *string `json:"body"`
}

func (m StudentMessage) Key() string { return m.ID }

func (m StudentMessage) WithID(id string) StudentMessage {
	m.ID = id
	return m
}

func (m StudentMessage) Apply(p MessagePatch) StudentMessage {
	if p.Title != nil {
		m.Title = *p.Title
	}
	if p.Body != nil {
		m.Body = *p.Body
	}
	return m
}

func (m StudentMessage) TitleText() string { return m.Title }

func (m StudentMessage) Normalize() StudentMessage {
	m.Recipient = NormalizeEmail(m.Recipient)
	m.Title = strings.TrimSpace(m.Title)
	return m
}

func (m StudentMessage) Valid() bool {
	return m.Recipient != "" && m.Title != "" && strings.TrimSpace(m.Body) != ""
}

// VisibleTo reports whether the session may read the message. Recipients
// are matched by email or by identity reference.
func (m StudentMessage) VisibleTo(s Session) bool {
	if s.IsAdmin() {
		return true
	}
	if !s.IsStudent() {
		return false
	}
	if email := NormalizeEmail(s.Identity.Email); email != "" && m.Recipient == email {
		return true
	}
	return s.Identity.UserID != "" && m.Recipient == s.Identity.UserID
}

func MessageNewerFirst(a, b StudentMessage) bool {
	return a.CreatedAt.After(b.CreatedAt)
}

type ProfileSection struct {
	Title      string   `json:"title"`
	Paragraphs []string `json:"paragraphs"`
}

type SchoolProfile struct {
	Name     string           `json:"name"`
	Sections []ProfileSection `json:"sections"`
}

package livelist

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

// Topic names, also used as metrics labels.
const (
	TopicAnnouncements = "announcements"
	TopicEvents        = "events"
	TopicMessages      = "studentMessages"
)

type (
	AnnouncementFeed = Feed[model.Announcement, model.AnnouncementPatch]
	EventFeed        = Feed[model.Event, model.EventPatch]
	MessageFeed      = Feed[model.StudentMessage, model.MessagePatch]
)

// Feeds groups the three content feeds the server exposes.
type Feeds struct {
	Announcements *AnnouncementFeed
	Events        *EventFeed
	Messages      *MessageFeed
}

func NewFeeds(
	announcements Collection[model.Announcement],
	events Collection[model.Event],
	messages Collection[model.StudentMessage],
	broker *Broker,
	log logrus.FieldLogger,
) Feeds {
	return Feeds{
		Announcements: NewFeed[model.Announcement, model.AnnouncementPatch](announcements, broker, Options[model.Announcement]{
			Name: TopicAnnouncements,
			Less: model.AnnouncementNewerFirst,
		}, log),
		Events: NewFeed[model.Event, model.EventPatch](events, broker, Options[model.Event]{
			Name: TopicEvents,
			Less: model.EventNewerFirst,
		}, log),
		Messages: NewFeed[model.StudentMessage, model.MessagePatch](messages, broker, Options[model.StudentMessage]{
			Name: TopicMessages,
			Less: model.MessageNewerFirst,
			Prepare: func(m model.StudentMessage) model.StudentMessage {
				m.CreatedAt = time.Now().UTC()
				return m
			},
		}, log),
	}
}

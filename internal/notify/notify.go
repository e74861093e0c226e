// Package notify sends the email notice a student receives when the school
// posts a message for them.
package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
	"github.com/sendgrid/sendgrid-go"
	sgmail "github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/model"
)

const (
	sendgridHost     = "https://api.sendgrid.com"
	sendgridEndpoint = "/v3/mail/send"
)

type Message struct {
	To      string
	Subject string
	Text    string
}

type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

type SendGrid struct {
	key        string
	host       string
	from       *sgmail.Email
	subjPrefix string
}

func NewSendGrid(key, appName, fromEmail string) *SendGrid {
	return &SendGrid{
		key:        key,
		host:       sendgridHost,
		from:       sgmail.NewEmail(appName, fromEmail),
		subjPrefix: "[" + appName + "] ",
	}
}

func (s *SendGrid) prepare(msg Message) *sgmail.SGMailV3 {
	p := sgmail.NewPersonalization()
	p.Subject = s.subjPrefix + msg.Subject
	p.AddTos(sgmail.NewEmail("", msg.To))

	m := sgmail.NewV3Mail()
	m.SetFrom(s.from)
	m.AddPersonalizations(p)
	m.AddContent(sgmail.NewContent("text/plain", msg.Text))
	return m
}

func (s *SendGrid) Send(_ context.Context, msg Message) error {
	req := sendgrid.GetRequest(s.key, sendgridEndpoint, s.host)
	req.Method = http.MethodPost
	req.Body = sgmail.GetRequestBody(s.prepare(msg))

	res, err := sendgrid.API(req)
	if err != nil {
		return errors.Wrap(err, "sendgrid request")
	}
	if res.StatusCode >= http.StatusBadRequest {
		return errors.Errorf("sendgrid status %d", res.StatusCode)
	}
	return nil
}

// Console logs mails instead of sending them; used when no SendGrid key is
// configured.
type Console struct {
	log logrus.FieldLogger
}

func NewConsole(log logrus.FieldLogger) *Console {
	return &Console{log: log.WithField("component", "mail")}
}

func (c *Console) Send(_ context.Context, msg Message) error {
	c.log.WithFields(logrus.Fields{"to": msg.To, "subject": msg.Subject}).Info(msg.Text)
	return nil
}

// StudentNotice builds the notice for a new message. ok is false when the
// recipient is an identity reference rather than an address.
func StudentNotice(m model.StudentMessage) (Message, bool) {
	if !strings.Contains(m.Recipient, "@") {
		return Message{}, false
	}
	return Message{
		To:      m.Recipient,
		Subject: "Pesan baru: " + m.Title,
		Text:    fmt.Sprintf("%s\n\n%s\n\nBuka aplikasi sekolah untuk membaca pesan lengkap.", m.Title, m.Body),
	}, true
}

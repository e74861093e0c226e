package logging

import (
	"io"
	"os"
	"strings"

	"github.com/rollbar/rollbar-go"
	"github.com/sirupsen/logrus"

	"github.com/IsmaHaa12/smp-announcement/internal/config"
)

// New builds the process logger from configuration. When a Rollbar token is
// configured, error-level entries are forwarded there as well.
func New(cfg config.Config) *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(os.Stdout)
	if level, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(level)
	}
	if strings.EqualFold(cfg.LogFormat, "json") {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	if cfg.RollbarToken != "" {
		client := rollbar.New(cfg.RollbarToken, cfg.Env, "", "", "")
		logger.AddHook(NewRollbarHook(client))
	}
	return logger
}

// Discard returns a logger that drops everything; used by tests.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

type reporter interface {
	ErrorWithExtras(level string, err error, extras map[string]interface{})
	MessageWithExtras(level string, msg string, extras map[string]interface{})
}

type RollbarHook struct {
	client reporter
}

func NewRollbarHook(client reporter) *RollbarHook {
	return &RollbarHook{client: client}
}

func (h *RollbarHook) Levels() []logrus.Level {
	return []logrus.Level{logrus.PanicLevel, logrus.FatalLevel, logrus.ErrorLevel}
}

func (h *RollbarHook) Fire(entry *logrus.Entry) error {
	level := rollbar.ERR
	if entry.Level <= logrus.FatalLevel {
		level = rollbar.CRIT
	}
	extras := make(map[string]interface{}, len(entry.Data))
	var cause error
	for key, value := range entry.Data {
		if key == logrus.ErrorKey {
			if err, ok := value.(error); ok {
				cause = err
				continue
			}
		}
		extras[key] = value
	}
	if cause != nil {
		extras["message"] = entry.Message
		h.client.ErrorWithExtras(level, cause, extras)
		return nil
	}
	h.client.MessageWithExtras(level, entry.Message, extras)
	return nil
}

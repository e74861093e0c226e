package livelist

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const DefaultRelayChannel = "schoolinfo:changes"

type change struct {
	Origin string `json:"origin"`
	Topic  string `json:"topic"`
}

// RedisRelay shares collection changes between server instances over a
// Redis pub/sub channel. Changes published by this instance are skipped on
// receipt since the broker already delivered them locally.
type RedisRelay struct {
	client  *redis.Client
	channel string
	origin  string
	broker  *Broker
	log     logrus.FieldLogger
}

func NewRedisRelay(client *redis.Client, channel string, broker *Broker, log logrus.FieldLogger) *RedisRelay {
	if channel == "" {
		channel = DefaultRelayChannel
	}
	return &RedisRelay{
		client:  client,
		channel: channel,
		origin:  uuid.NewString(),
		broker:  broker,
		log:     log.WithField("component", "relay"),
	}
}

func (r *RedisRelay) Publish(ctx context.Context, topic string) error {
	payload, err := json.Marshal(change{Origin: r.origin, Topic: topic})
	if err != nil {
		return err
	}
	if err := r.client.Publish(ctx, r.channel, payload).Err(); err != nil {
		return errors.Wrap(err, "redis publish")
	}
	return nil
}

// Run forwards remote changes to the broker until ctx ends.
func (r *RedisRelay) Run(ctx context.Context) error {
	ps := r.client.Subscribe(ctx, r.channel)
	defer ps.Close()
	if _, err := ps.Receive(ctx); err != nil {
		return errors.Wrap(err, "redis subscribe")
	}
	messages := ps.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var c change
			if err := json.Unmarshal([]byte(msg.Payload), &c); err != nil {
				r.log.WithError(err).Warn("dropping malformed change")
				continue
			}
			if c.Origin == r.origin || c.Topic == "" {
				continue
			}
			r.broker.Notify(c.Topic)
		}
	}
}

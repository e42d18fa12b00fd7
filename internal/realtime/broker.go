package realtime

import (
	"context"
	"encoding/json"
	"errors"

	redis "github.com/redis/go-redis/v9"
)

// RedisBroker relays room envelopes over a Redis pub/sub channel so that
// every server instance delivers them to its own connections.
type RedisBroker struct {
	client  *redis.Client
	channel string
}

// NewRedisBroker connects lazily to the server at url (redis://...).
func NewRedisBroker(url, channel string) (*RedisBroker, error) {
	if channel == "" {
		return nil, errors.New("realtime: redis channel is empty")
	}
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return &RedisBroker{client: redis.NewClient(opt), channel: channel}, nil
}

// Ping checks connectivity.
func (b *RedisBroker) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Publish implements Broker.
func (b *RedisBroker) Publish(ctx context.Context, env Envelope) error {
	data, err := json.Marshal(env)
	if err != nil {
		return err
	}
	return b.client.Publish(ctx, b.channel, data).Err()
}

// Subscribe implements Broker. It blocks until ctx is done, the subscription
// fails to start or its channel closes. Undecodable messages are skipped.
func (b *RedisBroker) Subscribe(ctx context.Context, deliver func(Envelope), ready func()) error {
	sub := b.client.Subscribe(ctx, b.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	ready()
	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return errors.New("realtime: redis subscription closed")
			}
			env, err := decodeEnvelope(msg.Payload)
			if err != nil {
				logger(ctx).Warn().Err(err).Msg("drop undecodable room envelope")
				continue
			}
			deliver(env)
		}
	}
}

// Close implements Broker.
func (b *RedisBroker) Close() error { return b.client.Close() }

func decodeEnvelope(payload string) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal([]byte(payload), &env); err != nil {
		return Envelope{}, err
	}
	if env.Room == "" || len(env.Frame) == 0 {
		return Envelope{}, errors.New("realtime: envelope without room or frame")
	}
	return env, nil
}

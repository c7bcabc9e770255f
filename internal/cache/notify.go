package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/recetas/recetas/internal/model"
)

// AuthChannel is the pub/sub channel auth state changes travel on.
const AuthChannel = "recetas:auth:changes"

// AuthNotifier fans auth state changes out through Redis pub/sub so every
// API instance sees sign-ins, refreshes and sign-outs made on any other.
// Published sessions keep their access token so subscribers can resolve the
// profile; the refresh token is dropped. The Redis instance must be private.
type AuthNotifier struct {
	cache   *Cache
	channel string
	logger  *slog.Logger
}

// NewAuthNotifier creates an AuthNotifier on AuthChannel.
func NewAuthNotifier(c *Cache, logger *slog.Logger) *AuthNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthNotifier{
		cache:   c,
		channel: AuthChannel,
		logger:  logger.With("component", "auth_notifier"),
	}
}

// Publish sends change to the subscribers of every instance, this one included.
func (n *AuthNotifier) Publish(ctx context.Context, change model.AuthChange) error {
	data, err := encodeChange(change)
	if err != nil {
		return err
	}
	if err := n.cache.client.Publish(ctx, n.channel, data).Err(); err != nil {
		return fmt.Errorf("publish auth change: %w", err)
	}
	return nil
}

// Subscribe registers handler. It returns once Redis confirmed the
// subscription, so no change published afterwards is missed.
func (n *AuthNotifier) Subscribe(handler func(model.AuthChange)) func() {
	ctx := context.Background()
	pubsub := n.cache.client.Subscribe(ctx, n.channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		n.logger.Error("auth subscription not confirmed", slog.String("error", err.Error()))
	}

	go func() {
		for msg := range pubsub.Channel() {
			change, err := decodeChange([]byte(msg.Payload))
			if err != nil {
				n.logger.Warn("dropping malformed auth change", slog.String("error", err.Error()))
				continue
			}
			handler(change)
		}
	}()

	var once sync.Once
	return func() {
		once.Do(func() {
			if err := pubsub.Close(); err != nil {
				n.logger.Warn("failed to close auth subscription", slog.String("error", err.Error()))
			}
		})
	}
}

func encodeChange(change model.AuthChange) ([]byte, error) {
	if change.Session != nil {
		session := *change.Session
		session.RefreshToken = ""
		change.Session = &session
	}
	data, err := json.Marshal(change)
	if err != nil {
		return nil, fmt.Errorf("marshal auth change: %w", err)
	}
	return data, nil
}

func decodeChange(data []byte) (model.AuthChange, error) {
	var change model.AuthChange
	if err := json.Unmarshal(data, &change); err != nil {
		return model.AuthChange{}, fmt.Errorf("unmarshal auth change: %w", err)
	}
	return change, nil
}

package notify

import (
	"context"
	"log/slog"
	"strings"

	"github.com/pkg/errors"
)

// Change feed providers.
const (
	ProviderNone   = "none"
	ProviderPubSub = "pubsub"
	ProviderAMQP   = "amqp"
	ProviderFCM    = "fcm"
)

// FeedConfig selects and configures the change feed.
type FeedConfig struct {
	Provider        string
	PubSubProjectID string
	PubSubTopic     string
	AMQPURL         string
	AMQPExchange    string
}

// NewPublisher builds the Publisher named by cfg.Provider. An empty provider,
// "none" and "fcm" (which only covers role broadcasts) give a NoopPublisher.
func NewPublisher(ctx context.Context, cfg FeedConfig, logger *slog.Logger) (Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "", ProviderNone, ProviderFCM:
		logger.Info("change feed not configured, using no-op publisher")
		return NewNoopPublisher(logger), nil

	case ProviderPubSub:
		if cfg.PubSubProjectID == "" {
			return nil, errors.New("notify: project ID is required for pubsub provider")
		}
		if cfg.PubSubTopic == "" {
			return nil, errors.New("notify: topic is required for pubsub provider")
		}
		return NewPubSubPublisher(ctx, cfg.PubSubProjectID, cfg.PubSubTopic, logger)

	case ProviderAMQP:
		if cfg.AMQPURL == "" {
			return nil, errors.New("notify: url is required for amqp provider")
		}
		if cfg.AMQPExchange == "" {
			return nil, errors.New("notify: exchange is required for amqp provider")
		}
		logger.Info("using amqp change feed", slog.String("exchange", cfg.AMQPExchange))
		return NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange, logger)

	default:
		return nil, errors.Errorf("notify: unknown provider %q", cfg.Provider)
	}
}

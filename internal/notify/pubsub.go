package notify

import (
	"context"
	"fmt"
	"log/slog"

	"cloud.google.com/go/pubsub/v2"
	pubsubpb "cloud.google.com/go/pubsub/v2/apiv1/pubsubpb"
	"github.com/pkg/errors"
)

// PubSubPublisher publishes changes to a Google Cloud Pub/Sub topic.
type PubSubPublisher struct {
	client    *pubsub.Client
	publisher *pubsub.Publisher
	logger    *slog.Logger
}

// NewPubSubPublisher connects to projectID and checks that topicID exists.
func NewPubSubPublisher(ctx context.Context, projectID, topicID string, logger *slog.Logger) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, projectID)
	if err != nil {
		return nil, errors.WithStack(err)
	}

	topicPath := fmt.Sprintf("projects/%s/topics/%s", projectID, topicID)
	if _, err := client.TopicAdminClient.GetTopic(ctx, &pubsubpb.GetTopicRequest{Topic: topicPath}); err != nil {
		client.Close()
		return nil, errors.Wrapf(err, "notify: get topic %s", topicID)
	}

	logger.Info("pubsub change feed initialized",
		slog.String("project_id", projectID),
		slog.String("topic_id", topicID),
	)

	return &PubSubPublisher{
		client:    client,
		publisher: client.Publisher(topicID),
		logger:    logger,
	}, nil
}

// Publish sends change and waits for the server to acknowledge it.
func (p *PubSubPublisher) Publish(ctx context.Context, change Change) error {
	msg, err := pubsubMessage(change)
	if err != nil {
		return err
	}

	serverID, err := p.publisher.Publish(ctx, msg).Get(ctx)
	if err != nil {
		return errors.Wrapf(err, "notify: publish change %s", change.ID)
	}

	p.logger.DebugContext(ctx, "change published",
		slog.String("kind", string(change.Kind)),
		slog.String("event_id", change.EventID),
		slog.String("server_id", serverID),
	)
	return nil
}

// Close flushes pending messages and releases the client.
func (p *PubSubPublisher) Close() error {
	if p.publisher != nil {
		p.publisher.Stop()
	}
	if p.client != nil {
		return errors.WithStack(p.client.Close())
	}
	return nil
}

func pubsubMessage(change Change) (*pubsub.Message, error) {
	data, err := change.encode()
	if err != nil {
		return nil, err
	}
	return &pubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"change_id": change.ID,
			"kind":      string(change.Kind),
			"event_id":  change.EventID,
		},
	}, nil
}

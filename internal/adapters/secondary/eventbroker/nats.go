package eventbroker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

const (
	StreamName     = "PROFILE"
	SubjectPattern = "profile.>" // Tous les events profile.*

	SubjectProfileCreated = "profile.created"
	SubjectFollowCreated  = "profile.follow.created"
	SubjectFollowRemoved  = "profile.follow.removed"
	SubjectProfileViewed  = "profile.viewed"
)

var _ ports.EventPublisher = (*NatsBroker)(nil)

// --- Payloads (contrat implicite avec les consumers) ---

type ProfileCreatedEvent struct {
	ProfileID string    `json:"profile_id"`
	OwnerID   string    `json:"owner_id"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

type FollowEvent struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type ProfileViewedEvent struct {
	ProfileID  string    `json:"profile_id"`
	OccurredAt time.Time `json:"occurred_at"`
}

type NatsBroker struct {
	js jetstream.JetStream
}

// NewNatsBroker s'assure que le Stream existe (Idempotent)
func NewNatsBroker(ctx context.Context, nc *nats.Conn) (*NatsBroker, error) {
	js, err := jetstream.New(nc)
	if err != nil {
		return nil, fmt.Errorf("jetstream init: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: []string{SubjectPattern},
		Storage:  jetstream.FileStorage,
		Replicas: 1, // Mettre 3 en cluster
	})
	if err != nil {
		return nil, fmt.Errorf("create stream: %w", err)
	}

	return &NatsBroker{js: js}, nil
}

// JetStream expose le contexte JetStream pour les consumers du même process
func (n *NatsBroker) JetStream() jetstream.JetStream {
	return n.js
}

func (n *NatsBroker) PublishProfileCreated(ctx context.Context, p *domain.Profile) error {
	return n.publish(ctx, SubjectProfileCreated, ProfileCreatedEvent{
		ProfileID: p.ID,
		OwnerID:   p.OwnerID,
		Username:  p.Username,
		CreatedAt: p.CreatedAt,
	})
}

func (n *NatsBroker) PublishFollowCreated(ctx context.Context, edge *domain.FollowEdge) error {
	return n.publish(ctx, SubjectFollowCreated, FollowEvent{
		FollowerID:  edge.FollowerID,
		FollowingID: edge.FollowingID,
		OccurredAt:  edge.CreatedAt,
	})
}

func (n *NatsBroker) PublishFollowRemoved(ctx context.Context, followerID, followingID string) error {
	return n.publish(ctx, SubjectFollowRemoved, FollowEvent{
		FollowerID:  followerID,
		FollowingID: followingID,
		OccurredAt:  time.Now().UTC(),
	})
}

func (n *NatsBroker) PublishProfileViewed(ctx context.Context, profileID string) error {
	return n.publish(ctx, SubjectProfileViewed, ProfileViewedEvent{
		ProfileID:  profileID,
		OccurredAt: time.Now().UTC(),
	})
}

func (n *NatsBroker) publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	msg := &nats.Msg{
		Subject: subject,
		Data:    data,
		Header:  nats.Header{},
	}
	// Propagation du TraceID dans les headers NATS
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(msg.Header))

	// JetStream confirme la persistance côté serveur
	ack, err := n.js.PublishMsg(ctx, msg)
	if err != nil {
		return fmt.Errorf("nats publish %s: %w", subject, err)
	}

	slog.Debug("📢 Event published", "subject", subject, "stream", ack.Stream, "seq", ack.Sequence)
	return nil
}

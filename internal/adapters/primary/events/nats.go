package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go/jetstream"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/domain"
	"github.com/jupiterclapton/cenackle/services/profile-service/internal/core/ports"
)

const (
	streamName     = "PROFILE"
	consumerName   = "profile-graph-projection"
	followSubjects = "profile.follow.>"

	subjectFollowCreated = "profile.follow.created"
	subjectFollowRemoved = "profile.follow.removed"

	handleTimeout = 10 * time.Second
	maxDeliver    = 5
)

// Même format que celui publié par l'eventbroker
type followEvent struct {
	FollowerID  string    `json:"follower_id"`
	FollowingID string    `json:"following_id"`
	OccurredAt  time.Time `json:"occurred_at"`
}

type EventHandler struct {
	service ports.ProjectionService
	consume jetstream.ConsumeContext
}

func NewEventHandler(service ports.ProjectionService) *EventHandler {
	return &EventHandler{service: service}
}

// Start crée (ou met à jour) le consumer durable et commence la consommation
func (h *EventHandler) Start(ctx context.Context, js jetstream.JetStream) error {
	consumer, err := js.CreateOrUpdateConsumer(ctx, streamName, jetstream.ConsumerConfig{
		Durable:       consumerName,
		FilterSubject: followSubjects,
		AckPolicy:     jetstream.AckExplicitPolicy,
		AckWait:       30 * time.Second,
		MaxDeliver:    maxDeliver,
	})
	if err != nil {
		return fmt.Errorf("create consumer: %w", err)
	}

	cc, err := consumer.Consume(h.HandleMessage)
	if err != nil {
		return fmt.Errorf("consume: %w", err)
	}
	h.consume = cc

	slog.Info("🎧 Listening for follow events", "consumer", consumerName, "filter", followSubjects)
	return nil
}

func (h *EventHandler) Stop() {
	if h.consume != nil {
		h.consume.Stop()
	}
}

// HandleMessage applique un event de follow à la projection de graphe
func (h *EventHandler) HandleMessage(msg jetstream.Msg) {
	// 1. Extraction du contexte de trace (lien avec la requête HTTP d'origine)
	ctx := otel.GetTextMapPropagator().Extract(context.Background(), propagation.HeaderCarrier(msg.Headers()))

	ctx, span := otel.Tracer("profile-service").Start(ctx, "process_"+msg.Subject(), trace.WithSpanKind(trace.SpanKindConsumer))
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, handleTimeout)
	defer cancel()

	var event followEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		span.RecordError(err)
		slog.Error("❌ Invalid event format", "subject", msg.Subject(), "error", err)
		// Message empoisonné : inutile de le relivrer
		_ = msg.Term()
		return
	}

	var err error
	switch msg.Subject() {
	case subjectFollowCreated:
		err = h.service.ApplyFollowCreated(ctx, event.FollowerID, event.FollowingID, event.OccurredAt)
	case subjectFollowRemoved:
		err = h.service.ApplyFollowRemoved(ctx, event.FollowerID, event.FollowingID)
	default:
		slog.Debug("Ignoring event", "subject", msg.Subject())
		_ = msg.Ack()
		return
	}

	if err != nil {
		span.RecordError(err)
		// IDs malformés : aucune relivraison ne pourra réussir
		if domain.IsValidation(err) {
			slog.Error("❌ Invalid follow event", "subject", msg.Subject(), "follower_id", event.FollowerID, "error", err)
			_ = msg.Term()
			return
		}
		slog.Error("❌ Projection failed", "subject", msg.Subject(), "follower_id", event.FollowerID, "error", err)
		_ = msg.NakWithDelay(time.Second)
		return
	}

	if err := msg.Ack(); err != nil {
		slog.Warn("Ack failed", "subject", msg.Subject(), "error", err)
	}
}

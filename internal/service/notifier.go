package service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/models"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/queue"
)

// Notifier pushes persisted signals to the live monitoring channel of an
// assessment.
type Notifier interface {
	NotifySignal(ctx context.Context, assessmentID string, notification models.SignalNotification) error
}

// RoutingKeyFor is the per-assessment topic monitoring consumers bind to.
func RoutingKeyFor(assessmentID string) string {
	return "assessment." + assessmentID + ".signal"
}

type amqpNotifier struct {
	publisher queue.RabbitMQPublisher
	exchange  string
	logger    zerolog.Logger
}

func NewAMQPNotifier(publisher queue.RabbitMQPublisher, exchange string, logger zerolog.Logger) Notifier {
	return &amqpNotifier{
		publisher: publisher,
		exchange:  exchange,
		logger:    logger.With().Str("component", "amqp_notifier").Logger(),
	}
}

func (n *amqpNotifier) NotifySignal(ctx context.Context, assessmentID string, notification models.SignalNotification) error {
	body, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal signal notification: %w", err)
	}

	routingKey := RoutingKeyFor(assessmentID)
	if err := n.publisher.Publish(ctx, n.exchange, routingKey, body); err != nil {
		return fmt.Errorf("failed to publish signal notification: %w", err)
	}

	n.logger.Debug().
		Str("signal_id", notification.SignalID).
		Str("routing_key", routingKey).
		Msg("Signal notification published")
	return nil
}

type logNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier is used when no broker is configured.
func NewLogNotifier(logger zerolog.Logger) Notifier {
	return &logNotifier{logger: logger.With().Str("component", "log_notifier").Logger()}
}

func (n *logNotifier) NotifySignal(_ context.Context, assessmentID string, notification models.SignalNotification) error {
	n.logger.Info().
		Str("assessment_id", assessmentID).
		Str("signal_id", notification.SignalID).
		Str("type", notification.Type.String()).
		Str("severity", notification.Severity.String()).
		Float64("score", notification.Score).
		Strs("participants", notification.Participants).
		Msg("Collaboration signal")
	return nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/service"
	"github.com/RubachokBoss/plagiarism-checker/integrity-service/internal/worker/queue"
)

// AnswerWorker feeds answer.submitted events from the broker into the
// integrity pipeline.
type AnswerWorker interface {
	Start(ctx context.Context) error
	Stop() error
	GetStats() WorkerStats
}

type WorkerStats struct {
	ActiveWorkers  int `json:"active_workers"`
	ProcessedToday int `json:"processed_today"`
	TotalProcessed int `json:"total_processed"`
	FailedJobs     int `json:"failed_jobs"`
	DroppedJobs    int `json:"dropped_jobs"`
	QueueLength    int `json:"queue_length"`
}

type answerWorker struct {
	workerPool    *WorkerPool
	queueConsumer queue.RabbitMQConsumer
	integrity     service.IntegrityService
	logger        zerolog.Logger
	stats         WorkerStats
	statsMutex    sync.RWMutex
	startTime     time.Time
}

func NewAnswerWorker(
	workerPool *WorkerPool,
	queueConsumer queue.RabbitMQConsumer,
	integrity service.IntegrityService,
	logger zerolog.Logger,
) AnswerWorker {
	return &answerWorker{
		workerPool:    workerPool,
		queueConsumer: queueConsumer,
		integrity:     integrity,
		logger:        logger.With().Str("component", "answer_worker").Logger(),
		startTime:     time.Now(),
	}
}

func (w *answerWorker) Start(ctx context.Context) error {
	w.logger.Info().Msg("Starting answer worker...")

	if err := w.workerPool.Start(ctx); err != nil {
		return fmt.Errorf("failed to start worker pool: %w", err)
	}

	msgs, err := w.queueConsumer.Consume(ctx)
	if err != nil {
		return fmt.Errorf("failed to start consuming messages: %w", err)
	}

	go w.processMessages(ctx, msgs)

	w.logger.Info().Msg("Answer worker started successfully")
	return nil
}

func (w *answerWorker) Stop() error {
	w.logger.Info().Msg("Stopping answer worker...")

	if err := w.queueConsumer.Close(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to close queue consumer")
	}

	if err := w.workerPool.Stop(); err != nil {
		w.logger.Error().Err(err).Msg("Failed to stop worker pool")
	}

	stats := w.GetStats()
	w.logger.Info().
		Int("total_processed", stats.TotalProcessed).
		Int("failed_jobs", stats.FailedJobs).
		Dur("uptime", time.Since(w.startTime)).
		Msg("Answer worker stopped")

	return nil
}

func (w *answerWorker) processMessages(ctx context.Context, msgs <-chan queue.RabbitMQMessage) {
	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Stopping message processing")
			return
		case msg, ok := <-msgs:
			if !ok {
				w.logger.Warn().Msg("Message channel closed")
				return
			}

			accepted := w.workerPool.Submit(func() {
				w.handle(ctx, msg)
			})
			if !accepted {
				w.statsMutex.Lock()
				w.stats.DroppedJobs++
				w.statsMutex.Unlock()

				if err := msg.Nack(false, true); err != nil {
					w.logger.Error().Err(err).Msg("Failed to nack message")
				}
			}
		}
	}
}

// handle acks processed and permanently broken messages and requeues the
// rest.
func (w *answerWorker) handle(ctx context.Context, msg queue.RabbitMQMessage) {
	err := w.processMessage(ctx, msg)
	if err == nil {
		w.statsMutex.Lock()
		w.stats.TotalProcessed++
		if time.Since(msg.Timestamp).Hours() < 24 {
			w.stats.ProcessedToday++
		}
		w.statsMutex.Unlock()

		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	w.logger.Error().Err(err).Bool("permanent", isPermanentError(err)).Msg("Failed to process message")

	w.statsMutex.Lock()
	w.stats.FailedJobs++
	w.statsMutex.Unlock()

	if isPermanentError(err) {
		if ackErr := msg.Ack(false); ackErr != nil {
			w.logger.Error().Err(ackErr).Msg("Failed to ack message")
		}
		return
	}

	if nackErr := msg.Nack(false, true); nackErr != nil {
		w.logger.Error().Err(nackErr).Msg("Failed to nack message")
	}
}

func (w *answerWorker) processMessage(ctx context.Context, msg queue.RabbitMQMessage) error {
	event, err := queue.DecodeAnswerSubmitted(msg.Body)
	if err != nil {
		return permanent(err)
	}

	answer := event.ToAnswer()
	if answer.ID == "" {
		answer.ID = uuid.New().String()
	}

	result, err := w.integrity.ProcessAnswer(ctx, answer)
	if err != nil {
		if errors.Is(err, service.ErrInvalidAnswer) {
			return permanent(err)
		}
		return fmt.Errorf("failed to process answer: %w", err)
	}

	w.logger.Debug().
		Str("answer_id", result.AnswerID).
		Int("signals", len(result.Signals)).
		Int("processing_time_ms", result.ProcessingTimeMs).
		Msg("Answer event processed")
	return nil
}

func (w *answerWorker) GetStats() WorkerStats {
	w.statsMutex.RLock()
	stats := w.stats
	w.statsMutex.RUnlock()

	queueLength, err := w.queueConsumer.GetQueueLength()
	if err != nil {
		w.logger.Debug().Err(err).Msg("Failed to get queue length")
	} else {
		stats.QueueLength = queueLength
	}

	stats.ActiveWorkers = w.workerPool.GetActiveWorkers()
	return stats
}

type permanentError struct {
	err error
}

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return permanentError{err: err}
}

func isPermanentError(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

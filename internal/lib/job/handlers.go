package job

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

// EnqueueMutation schedules a TaskModelMutated task. It matches
// rpc.MutationHook, so it can be registered with rpc.WithMutationHook.
//
// Failures are logged and never reach the API caller: the mutation has
// already been committed.
func (j *JobService) EnqueueMutation(ctx context.Context, model, operation string, result any) {
	logger := j.logger
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		logger = l
	}

	task, err := NewModelMutatedTask(model, operation, result, time.Now())
	if err != nil {
		logger.Error().Err(err).
			Str("model", model).
			Str("operation", operation).
			Msg("failed to build mutation task")
		return
	}

	info, err := j.Client.EnqueueContext(ctx, task)
	if err != nil {
		logger.Warn().Err(err).
			Str("model", model).
			Str("operation", operation).
			Msg("failed to enqueue mutation task")
		return
	}

	logger.Debug().
		Str("task_id", info.ID).
		Str("queue", info.Queue).
		Str("model", model).
		Str("operation", operation).
		Msg("enqueued mutation task")
}

// handleModelMutatedTask records a committed mutation in the service log.
func (j *JobService) handleModelMutatedTask(ctx context.Context, t *asynq.Task) error {
	var p ModelMutatedPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		// a malformed payload never succeeds on retry
		return fmt.Errorf("failed to unmarshal mutation payload: %v: %w", err, asynq.SkipRetry)
	}

	j.logger.Info().
		Str("type", TaskModelMutated).
		Str("model", p.Model).
		Str("operation", p.Operation).
		Time("occurred_at", p.OccurredAt).
		Int("result_bytes", len(p.Result)).
		Msg("model mutated")

	return nil
}

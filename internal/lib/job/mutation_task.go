package job

import (
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
)

const (
	// TaskModelMutated is enqueued after every successful model API mutation.
	TaskModelMutated = "crud:mutation"
)

// ModelMutatedPayload is the JSON payload of a TaskModelMutated task.
type ModelMutatedPayload struct {
	Model      string          `json:"model"`
	Operation  string          `json:"operation"`
	Result     json.RawMessage `json:"result,omitempty"`
	OccurredAt time.Time       `json:"occurred_at"`
}

// NewModelMutatedTask builds a low-priority task describing one mutation.
//
// result is the operation result as returned to the client; it is stored
// as JSON so workers do not depend on the client's Go types.
func NewModelMutatedTask(model, operation string, result any, at time.Time) (*asynq.Task, error) {
	raw, err := json.Marshal(result)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(ModelMutatedPayload{
		Model:      model,
		Operation:  operation,
		Result:     raw,
		OccurredAt: at.UTC(),
	})
	if err != nil {
		return nil, err
	}

	return asynq.NewTask(
		TaskModelMutated,
		payload,
		asynq.MaxRetry(3),
		asynq.Queue("low"),
		asynq.Timeout(30*time.Second),
	), nil
}

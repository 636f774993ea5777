package queue

import (
	"encoding/json"

	"github.com/hibiken/asynq"

	"privata/pkg/domain"
)

const (
	// QueueRights is the asynq queue rights requests run on.
	QueueRights = "rights"
	// TaskExecute runs the pending steps of one rights request.
	TaskExecute = "rights:execute"
)

// ExecutePayload names the request a TaskExecute task runs.
type ExecutePayload struct {
	RequestID string `json:"request_id"`
}

// NewExecuteTask builds a TaskExecute task for id.
func NewExecuteTask(id domain.RightsRequestID) (*asynq.Task, error) {
	data, err := json.Marshal(ExecutePayload{RequestID: id.String()})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskExecute, data), nil
}

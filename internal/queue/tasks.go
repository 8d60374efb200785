package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/hibiken/asynq"
)

const (
	TypeOutputScreen = "safety:screen_output"
)

// OutputScreenPayload carries a model output to be re-checked off the
// request path.
type OutputScreenPayload struct {
	ResultID    string `json:"result_id"`
	Model       string `json:"model"`
	Output      string `json:"output"`
	SafetyLevel string `json:"safety_level,omitempty"`
}

func NewOutputScreenTask(p OutputScreenPayload) (*asynq.Task, error) {
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeOutputScreen, data, asynq.MaxRetry(3), asynq.Timeout(30*time.Second)), nil
}

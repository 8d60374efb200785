package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/metrics"
	"github.com/nikhilbhutani/metaprompt/internal/queue"
)

// OutputChecker runs the output guardrails.
type OutputChecker interface {
	CheckOutput(ctx context.Context, text string) (*guardrails.GuardrailResult, error)
}

type ScreenWorker struct {
	checker OutputChecker
}

func NewScreenWorker(checker OutputChecker) *ScreenWorker {
	return &ScreenWorker{checker: checker}
}

func (w *ScreenWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.OutputScreenPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	resultID, err := uuid.Parse(payload.ResultID)
	if err != nil {
		return fmt.Errorf("parse result ID: %v: %w", err, asynq.SkipRetry)
	}

	if payload.SafetyLevel != "" {
		ctx = guardrails.WithSafetyLevel(ctx, payload.SafetyLevel)
	}

	res, err := w.checker.CheckOutput(ctx, payload.Output)
	if err != nil {
		metrics.RecordOutputScreen("error")
		return fmt.Errorf("screen output %s: %w", resultID, err)
	}

	if !res.Allowed {
		metrics.RecordOutputScreen("unsafe")
		slog.Warn("model output failed safety screen",
			"result_id", resultID,
			"model", payload.Model,
			"reason", res.Reason,
			"flags", res.Flags,
		)
		return nil
	}

	metrics.RecordOutputScreen("safe")
	slog.Info("model output screened", "result_id", resultID, "model", payload.Model, "safety_score", res.Scores["safety_score"])
	return nil
}

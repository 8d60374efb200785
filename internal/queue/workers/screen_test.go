package workers

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/queue"
)

type mockOutputChecker struct {
	checkFn func(ctx context.Context, text string) (*guardrails.GuardrailResult, error)
}

func (m *mockOutputChecker) CheckOutput(ctx context.Context, text string) (*guardrails.GuardrailResult, error) {
	return m.checkFn(ctx, text)
}

func screenTask(t *testing.T, p queue.OutputScreenPayload) *asynq.Task {
	t.Helper()
	task, err := queue.NewOutputScreenTask(p)
	require.NoError(t, err)
	return task
}

func TestNewOutputScreenTask(t *testing.T) {
	task := screenTask(t, queue.OutputScreenPayload{ResultID: "r", Model: "gpt-4", Output: "hi"})
	assert.Equal(t, queue.TypeOutputScreen, task.Type())

	var got queue.OutputScreenPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &got))
	assert.Equal(t, "gpt-4", got.Model)
}

func TestScreenWorkerPassesOutputAndLevel(t *testing.T) {
	var seen string
	w := NewScreenWorker(&mockOutputChecker{checkFn: func(ctx context.Context, text string) (*guardrails.GuardrailResult, error) {
		seen = text
		assert.Equal(t, "strict", guardrails.SafetyLevelFromContext(ctx))
		return &guardrails.GuardrailResult{Allowed: false, Reason: "unsafe"}, nil
	}})

	err := w.ProcessTask(context.Background(), screenTask(t, queue.OutputScreenPayload{
		ResultID:    uuid.NewString(),
		Model:       "gpt-4",
		Output:      "model says hi",
		SafetyLevel: "strict",
	}))
	require.NoError(t, err, "an unsafe output is logged, not retried")
	assert.Equal(t, "model says hi", seen)
}

func TestScreenWorkerBadPayloadSkipsRetry(t *testing.T) {
	w := NewScreenWorker(&mockOutputChecker{checkFn: func(context.Context, string) (*guardrails.GuardrailResult, error) {
		t.Fatal("checker must not run for a bad payload")
		return nil, nil
	}})

	err := w.ProcessTask(context.Background(), asynq.NewTask(queue.TypeOutputScreen, []byte("{")))
	assert.ErrorIs(t, err, asynq.SkipRetry)

	err = w.ProcessTask(context.Background(), screenTask(t, queue.OutputScreenPayload{ResultID: "not-a-uuid"}))
	assert.ErrorIs(t, err, asynq.SkipRetry)
}

func TestScreenWorkerCheckerError(t *testing.T) {
	w := NewScreenWorker(&mockOutputChecker{checkFn: func(context.Context, string) (*guardrails.GuardrailResult, error) {
		return nil, errors.New("boom")
	}})

	err := w.ProcessTask(context.Background(), screenTask(t, queue.OutputScreenPayload{ResultID: uuid.NewString()}))
	require.Error(t, err)
	assert.NotErrorIs(t, err, asynq.SkipRetry)
}

package queue

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/metaprompt/internal/config"
)

type Client struct {
	client *asynq.Client
}

func NewClient(cfg config.RedisConfig) *Client {
	return &Client{
		client: asynq.NewClient(asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		}),
	}
}

func (c *Client) Close() error {
	return c.client.Close()
}

func (c *Client) EnqueueOutputScreen(ctx context.Context, payload OutputScreenPayload) error {
	task, err := NewOutputScreenTask(payload)
	if err != nil {
		return err
	}
	return c.enqueue(ctx, task)
}

// ScreenOutput schedules an asynchronous safety check of a model output.
func (c *Client) ScreenOutput(ctx context.Context, resultID uuid.UUID, model, output, level string) error {
	return c.EnqueueOutputScreen(ctx, OutputScreenPayload{
		ResultID:    resultID.String(),
		Model:       model,
		Output:      output,
		SafetyLevel: level,
	})
}

func (c *Client) enqueue(ctx context.Context, task *asynq.Task, opts ...asynq.Option) error {
	_, err := c.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return fmt.Errorf("enqueue %s: %w", task.Type(), err)
	}
	return nil
}

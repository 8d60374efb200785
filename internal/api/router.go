package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nikhilbhutani/metaprompt/internal/api/handlers"
	"github.com/nikhilbhutani/metaprompt/internal/api/middleware"
	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/engine"
	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/llm"
	"github.com/nikhilbhutani/metaprompt/internal/queue"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

type Router struct {
	mux     *chi.Mux
	redis   *redis.Client
	cfg     *config.Config
	checker *safety.Checker
	llmGW   llm.Gateway
	queue   *queue.Client
}

// NewRouter builds the safety checker and LLM gateway from cfg. rdb may be
// nil; output screening is only scheduled when cfg.Queue.ScreenOutputs is set.
func NewRouter(rdb *redis.Client, cfg *config.Config) (*Router, error) {
	checker, err := safety.NewDefault(safety.Thresholds(cfg.Safety.Levels))
	if err != nil {
		return nil, fmt.Errorf("build safety checker: %w", err)
	}

	rt := &Router{
		mux:     chi.NewRouter(),
		redis:   rdb,
		cfg:     cfg,
		checker: checker,
		llmGW:   llm.NewGateway(cfg.LLM),
	}
	if cfg.Queue.ScreenOutputs {
		rt.queue = queue.NewClient(cfg.Redis)
	}
	return rt, nil
}

// Close releases the queue client, if any.
func (rt *Router) Close() error {
	if rt.queue != nil {
		return rt.queue.Close()
	}
	return nil
}

func (rt *Router) Setup(ctx context.Context) http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	rl := middleware.NewRateLimiter(ctx, 100, 200)
	r.Use(rl.Limit)

	health := handlers.NewHealthHandler(rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)
	r.Handle("/metrics", promhttp.Handler())

	pipeline := guardrails.NewPipeline(rt.checker, rt.cfg.Safety)
	eng := engine.New(rt.llmGW, pipeline, engine.Config{
		DefaultModel:  rt.cfg.LLM.DefaultModel,
		Temperature:   rt.cfg.LLM.Temperature,
		MaxTokens:     rt.cfg.LLM.MaxTokens,
		SafetyEnabled: rt.cfg.Safety.Enabled,
	})
	if rt.queue != nil {
		eng.WithOutputScreener(rt.queue)
	}

	r.Route("/api/v1", func(r chi.Router) {
		safetyH := handlers.NewSafetyHandler(rt.checker, rt.cfg.Safety.DefaultLevel, rt.cfg.Safety.MaxInputLength)
		r.Route("/safety", func(r chi.Router) {
			r.Post("/check", safetyH.Check)
			r.Post("/quick", safetyH.Quick)
		})

		promptH := handlers.NewPromptHandler(eng)
		r.Post("/prompts/process", promptH.Process)

		llmH := handlers.NewLLMHandler(rt.llmGW, rt.cfg.LLM.DefaultModel)
		r.Get("/llm/models", llmH.Models)
	})

	return r
}

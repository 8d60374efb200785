// Command mpef screens prompts and forwards them to an LLM from the shell.
//
//	mpef [-config PATH] [-debug] <command> [flags]
//
// Commands: process, check, quick, models.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/nikhilbhutani/metaprompt/internal/config"
	"github.com/nikhilbhutani/metaprompt/internal/engine"
	"github.com/nikhilbhutani/metaprompt/internal/guardrails"
	"github.com/nikhilbhutani/metaprompt/internal/llm"
	"github.com/nikhilbhutani/metaprompt/internal/safety"
)

const usage = `usage: mpef [-config PATH] [-debug] <command> [flags]

commands:
  process   screen a prompt and send it to a model
  check     print the full safety verdict for a prompt
  quick     run the deny-list quick check
  models    list models of the configured providers
`

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: failed to read .env: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type app struct {
	cfg     *config.Config
	checker *safety.Checker
	stdout  io.Writer
	stderr  io.Writer
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("mpef", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", config.DefaultPath(), "path to config file")
	debug := global.Bool("debug", false, "enable debug logging")
	if err := global.Parse(args); err != nil {
		return 2
	}
	if global.NArg() == 0 {
		global.Usage()
		return 2
	}

	cfg, err := config.LoadFile(*configPath)
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	level := cfg.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	checker, err := safety.NewDefault(safety.Thresholds(cfg.Safety.Levels))
	if err != nil {
		fmt.Fprintf(stderr, "error: %v\n", err)
		return 1
	}

	a := &app{cfg: cfg, checker: checker, stdout: stdout, stderr: stderr}

	cmd, rest := global.Arg(0), global.Args()[1:]
	switch cmd {
	case "process":
		return a.process(ctx, rest)
	case "check":
		return a.check(ctx, rest)
	case "quick":
		return a.quick(rest)
	case "models":
		return a.models()
	default:
		fmt.Fprintf(stderr, "unknown command %q\n\n%s", cmd, usage)
		return 2
	}
}

func (a *app) flags(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	return fs
}

func (a *app) process(ctx context.Context, args []string) int {
	fs := a.flags("process")
	prompt := fs.String("p", "", "prompt to process (required)")
	model := fs.String("m", "auto", "model to use")
	extra := fs.String("c", "", "additional context")
	level := fs.String("level", "", "safety level (strict, standard, permissive)")
	useSafety := fs.Bool("safety", true, "enable safety checks")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *prompt == "" {
		fmt.Fprintln(a.stderr, "error: -p is required")
		return 2
	}

	enabled := *useSafety && a.cfg.Safety.Enabled
	if enabled && !a.checker.QuickCheck(*prompt) {
		fmt.Fprintln(a.stderr, "Safety check failed! Prompt contains potentially harmful content.")
		return 1
	}

	eng := engine.New(llm.NewGateway(a.cfg.LLM), guardrails.NewPipeline(a.checker, a.cfg.Safety), engine.Config{
		DefaultModel:  a.cfg.LLM.DefaultModel,
		Temperature:   a.cfg.LLM.Temperature,
		MaxTokens:     a.cfg.LLM.MaxTokens,
		SafetyEnabled: enabled,
	})

	res, err := eng.ProcessPrompt(ctx, engine.Request{
		Prompt:      *prompt,
		Model:       *model,
		Context:     *extra,
		SafetyLevel: *level,
	})
	if err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}

	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Model:\t%s (%s)\n", res.Model, res.Provider)
	fmt.Fprintf(tw, "Safety score:\t%.2f\n", res.SafetyScore)
	fmt.Fprintf(tw, "Confidence:\t%.2f\n", res.ConfidenceScore)
	fmt.Fprintf(tw, "Latency:\t%dms\n", res.LatencyMs)
	_ = tw.Flush()
	fmt.Fprintf(a.stdout, "\n%s\n", res.Output)
	return 0
}

// check exits 1 when the verdict is unsafe.
func (a *app) check(ctx context.Context, args []string) int {
	fs := a.flags("check")
	prompt := fs.String("p", "", "prompt to check")
	level := fs.String("level", a.cfg.Safety.DefaultLevel, "safety level (strict, standard, permissive)")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	v := a.checker.CheckPrompt(ctx, *prompt, *level, nil)

	enc := json.NewEncoder(a.stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	if !v.Safe {
		return 1
	}
	return 0
}

func (a *app) quick(args []string) int {
	fs := a.flags("quick")
	prompt := fs.String("p", "", "prompt to check")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if !a.checker.QuickCheck(*prompt) {
		fmt.Fprintln(a.stdout, "unsafe")
		return 1
	}
	fmt.Fprintln(a.stdout, "safe")
	return 0
}

func (a *app) models() int {
	tw := tabwriter.NewWriter(a.stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL")
	for _, m := range llm.NewGateway(a.cfg.LLM).ListModels() {
		fmt.Fprintf(tw, "%s\t%s\n", m.Provider, m.Model)
	}
	if err := tw.Flush(); err != nil {
		fmt.Fprintf(a.stderr, "error: %v\n", err)
		return 1
	}
	return 0
}

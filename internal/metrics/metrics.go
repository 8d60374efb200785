package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// metaprompt_safety_checks_total{risk_level=low|medium|high|critical|unknown}
	SafetyChecks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompt_safety_checks_total",
		Help: "Number of full safety checks by resulting risk level",
	}, []string{"risk_level"})

	SafetyCheckLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "metaprompt_safety_check_seconds",
		Help:    "Duration of full safety checks in seconds",
		Buckets: prometheus.DefBuckets,
	})

	QuickCheckRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "metaprompt_quick_check_rejections_total",
		Help: "Number of prompts rejected by the deny-list quick check",
	})

	// metaprompt_prompts_processed_total{provider, outcome=ok|rejected|error}
	PromptsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompt_prompts_processed_total",
		Help: "Number of prompts handled by the engine",
	}, []string{"provider", "outcome"})

	// metaprompt_output_screens_total{outcome=safe|unsafe|error}
	OutputScreens = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "metaprompt_output_screens_total",
		Help: "Number of model outputs screened asynchronously",
	}, []string{"outcome"})
)

func RecordSafetyCheck(riskLevel string, elapsed time.Duration) {
	SafetyChecks.WithLabelValues(riskLevel).Inc()
	SafetyCheckLatency.Observe(elapsed.Seconds())
}

// RecordQuickCheck counts a rejection when safe is false.
func RecordQuickCheck(safe bool) {
	if !safe {
		QuickCheckRejections.Inc()
	}
}

func RecordPrompt(provider, outcome string) {
	PromptsProcessed.WithLabelValues(provider, outcome).Inc()
}

func RecordOutputScreen(outcome string) {
	OutputScreens.WithLabelValues(outcome).Inc()
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	samplesProcessed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_director_samples_processed_total",
		Help: "Telemetry samples run through the director",
	})

	ruleSwitches = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_director_rule_switches_total",
		Help: "Times a direction rule took control, by rule",
	}, []string{"rule"})

	incidentsNoted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "replay_director_incidents_total",
		Help: "Incidents recorded by the incident scan",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "replay_director_runs_total",
		Help: "Analysis runs by outcome",
	}, []string{"outcome"}) // outcome=completed|aborted|failed

	activeRuns = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "replay_director_active_runs",
		Help: "Analysis runs currently in progress",
	})
)

func IncSamplesProcessed() { samplesProcessed.Inc() }

// RecordRuleSwitch counts a change of the rule in control.
func RecordRuleSwitch(rule string) { ruleSwitches.WithLabelValues(rule).Inc() }

func AddIncidents(n int) {
	if n > 0 {
		incidentsNoted.Add(float64(n))
	}
}

func RecordRunOutcome(outcome string) { runsTotal.WithLabelValues(outcome).Inc() }

func RunStarted()  { activeRuns.Inc() }
func RunFinished() { activeRuns.Dec() }

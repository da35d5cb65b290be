package voter

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/iotaledger/fpc/packages/vote"
)

var (
	roundsExecuted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_rounds_executed_total",
		Help: "Total number of FPC rounds executed.",
	})
	contextsFinalized = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_contexts_finalized_total",
		Help: "Total number of vote contexts that reached finalization.",
	})
	contextsFailed = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_contexts_failed_total",
		Help: "Total number of vote contexts that exceeded max_rounds_per_vote.",
	})
	activeContexts = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "fpc_active_contexts",
		Help: "Number of vote contexts currently active.",
	})
	peersQueried = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_peers_queried_total",
		Help: "Total number of distinct sampled peers queried, summed across all rounds.",
	})
	peersErrored = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_peers_errored_total",
		Help: "Total number of peer queries that exhausted their retries.",
	})
	eventsDropped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "fpc_events_dropped_total",
		Help: "Total number of events dropped because the event sink's channel was full.",
	})
)

func registerMetrics() {
	collectors := []prometheus.Collector{
		roundsExecuted, contextsFinalized, contextsFailed,
		activeContexts, peersQueried, peersErrored, eventsDropped,
	}
	for _, c := range collectors {
		if err := prometheus.Register(c); err != nil {
			// Already registered (e.g. plugin reconfigured in tests); a
			// second configure() call must not panic the node.
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				log.Warnf("voter: failed to register metric: %s", err)
			}
		}
	}
}

// observeMetrics updates the exported counters/gauges for a single event
// drained from the voter's channel sink.
func observeMetrics(ev vote.Event) {
	switch t := ev.(type) {
	case vote.RoundExecutedEvent:
		roundsExecuted.Inc()
		activeContexts.Set(float64(t.Stats.ActiveContexts))
		peersQueried.Add(float64(t.Stats.PeersQueried))
		peersErrored.Add(float64(t.Stats.PeersErrored))
	case vote.FinalizedEvent:
		contextsFinalized.Inc()
	case vote.FailedEvent:
		contextsFailed.Inc()
	}
	if sink != nil {
		eventsDropped.Add(float64(sink.Dropped()) - eventsDroppedSeen)
		eventsDroppedSeen = float64(sink.Dropped())
	}
}

// eventsDroppedSeen tracks the last observed cumulative drop count so the
// counter above is only ever incremented, never reset, matching
// prometheus.Counter's monotonic contract.
var eventsDroppedSeen float64

package jobs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/wordle-hub/wordle-stats-bot/internal/domain/player"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE GAUGES
// ══════════════════════════════════════════════════════════════════════════════

// Pinger is a backend that can be health-checked.
type Pinger interface {
	Ping(ctx context.Context) error
}

// StoreGaugesJob exports the latest edition and backend reachability.
type StoreGaugesJob struct {
	counter  player.EditionCounter
	backends map[string]Pinger
	names    []string
	timeout  time.Duration

	latestEdition prometheus.Gauge
	backendUp     *prometheus.GaugeVec
}

// NewStoreGaugesJob registers the gauges on reg.
func NewStoreGaugesJob(reg prometheus.Registerer, namespace string, counter player.EditionCounter, backends map[string]Pinger) *StoreGaugesJob {
	f := promauto.With(reg)
	names := make([]string, 0, len(backends))
	for name := range backends {
		names = append(names, name)
	}
	sort.Strings(names)

	return &StoreGaugesJob{
		counter:  counter,
		backends: backends,
		names:    names,
		timeout:  5 * time.Second,
		latestEdition: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "latest_edition",
			Help:      "Highest Wordle edition seen by the bot.",
		}),
		backendUp: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "backend_up",
			Help:      "1 if the storage backend answered its last ping.",
		}, []string{"backend"}),
	}
}

// Name implements scheduler.Job.
func (j *StoreGaugesJob) Name() string { return "store_gauges" }

// Run implements scheduler.Job.
func (j *StoreGaugesJob) Run(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	var errs []error
	for _, name := range j.names {
		if err := j.backends[name].Ping(ctx); err != nil {
			j.backendUp.WithLabelValues(name).Set(0)
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		j.backendUp.WithLabelValues(name).Set(1)
	}

	latest, err := j.counter.Latest(ctx)
	if err != nil {
		errs = append(errs, fmt.Errorf("latest edition: %w", err))
	} else {
		j.latestEdition.Set(float64(latest))
	}

	return errors.Join(errs...)
}

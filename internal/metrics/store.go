package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/gymlog/internal/gym"
	"github.com/roach88/gymlog/internal/store"
)

const storeScrapeTimeout = 5 * time.Second

// StoreStats is the part of the store read at scrape time.
type StoreStats interface {
	GymsByTeam(ctx context.Context) ([]store.TeamCount, error)
	EventsByKind(ctx context.Context) ([]store.KindCount, error)
}

// WithStoreStats also exports live gym and event counts read from src on
// every scrape.
func WithStoreStats(src StoreStats) Option {
	return func(r *Recorder) {
		r.stats = src
	}
}

// storeCollector reports the current projection and log sizes. Every team
// has a series so a team losing its last gym scrapes as zero.
type storeCollector struct {
	src    StoreStats
	gyms   *prometheus.Desc
	events *prometheus.Desc
}

func newStoreCollector(namespace string, src StoreStats) *storeCollector {
	return &storeCollector{
		src: src,
		gyms: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "gyms"),
			"Stored gyms by controlling team.",
			[]string{"team"}, nil,
		),
		events: prometheus.NewDesc(
			prometheus.BuildFQName(namespace, "store", "events_total"),
			"Events in the gym log, by kind.",
			[]string{"kind"}, nil,
		),
	}
}

func (c *storeCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.gyms
	ch <- c.events
}

func (c *storeCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), storeScrapeTimeout)
	defer cancel()

	if teams, err := c.src.GymsByTeam(ctx); err != nil {
		ch <- prometheus.NewInvalidMetric(c.gyms, err)
	} else {
		byName := make(map[string]int, len(gym.Teams()))
		for _, id := range gym.Teams() {
			byName[gym.TeamName(id)] = 0
		}
		for _, tc := range teams {
			byName[gym.TeamName(tc.Team)] += tc.Gyms
		}
		for name, n := range byName {
			ch <- prometheus.MustNewConstMetric(c.gyms, prometheus.GaugeValue, float64(n), name)
		}
	}

	if kinds, err := c.src.EventsByKind(ctx); err != nil {
		ch <- prometheus.NewInvalidMetric(c.events, err)
	} else {
		for _, kc := range kinds {
			ch <- prometheus.MustNewConstMetric(c.events, prometheus.CounterValue, float64(kc.Events), string(kc.Kind))
		}
	}
}

package metrics

import (
	"context"
	"time"
)

// RankingSizer reports the cardinality of the global station ranking.
type RankingSizer interface {
	RankingSize(ctx context.Context) (int64, error)
}

// Pinger checks liveness of an external dependency.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Collector samples gauge metrics and dependency health on a fixed interval.
type Collector struct {
	ranking RankingSizer
	pingers map[string]Pinger
	stopCh  chan struct{}
}

// NewCollector creates a new metrics collector. Pingers are keyed by the
// dependency name used in the voltgrid_dependency_up gauge and the health
// registry ("statestore", "database", "bus").
func NewCollector(ranking RankingSizer, pingers map[string]Pinger) *Collector {
	return &Collector{
		ranking: ranking,
		pingers: pingers,
		stopCh:  make(chan struct{}),
	}
}

// Start begins collecting metrics
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		// Collect immediately on start
		c.collect()

		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop stops the collector
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	c.collectRankingSize(ctx)
	c.collectDependencyHealth(ctx)
}

func (c *Collector) collectRankingSize(ctx context.Context) {
	if c.ranking == nil {
		return
	}
	n, err := c.ranking.RankingSize(ctx)
	if err != nil {
		return
	}
	RankingSize.Set(float64(n))
}

func (c *Collector) collectDependencyHealth(ctx context.Context) {
	for name, pinger := range c.pingers {
		if err := pinger.Ping(ctx); err != nil {
			DependencyUp.WithLabelValues(name).Set(0)
			UpdateComponent(name, false, err.Error())
			continue
		}
		DependencyUp.WithLabelValues(name).Set(1)
		UpdateComponent(name, true, "")
	}
}

package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/features"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/scoring"
	"github.com/voltgrid/voltgrid/pkg/statestore"
	"github.com/voltgrid/voltgrid/pkg/types"
)

// TelemetrySampler persists a rolling sample of raw telemetry.
type TelemetrySampler interface {
	SampleTelemetry(ctx context.Context, t *types.StationTelemetry) (bool, error)
}

// Deps are the shared dependencies the stages run on.
type Deps struct {
	Client      *redis.Client
	Store       statestore.Store
	Producer    *bus.Producer
	Predictions scoring.PredictionSource
	Sampler     TelemetrySampler
}

type stage struct {
	name     string
	consumer *bus.Consumer
	handler  bus.Handler
}

// Supervisor owns the streaming stages of one node: feature engineering,
// scoring, the user-context mirror and history sampling. Stages run as
// independent consumer groups so each can be scaled or fail on its own.
type Supervisor struct {
	stages []stage
	drain  time.Duration
	logger zerolog.Logger

	cancel context.CancelFunc
	done   chan error
}

// New assembles the standard stages. Sampler may be nil, which disables the
// history stage (pipeline nodes without repository access).
func New(cfg *config.Config, deps Deps) *Supervisor {
	s := &Supervisor{
		drain:  cfg.Pipeline.DrainTimeout,
		logger: log.WithComponent("pipeline"),
	}

	featureRunner := features.NewRunner(features.NewEngineer(cfg.Features), deps.Store, deps.Producer)
	s.add(cfg, deps.Client, "features", bus.TopicStationTelemetry, cfg.Pipeline.FeatureWorkers, featureRunner.Handle)

	scoreRunner := scoring.NewRunner(scoring.NewCalculator(cfg.Scoring), deps.Store, deps.Producer, deps.Predictions)
	s.add(cfg, deps.Client, "scoring", bus.TopicStationFeatures, cfg.Pipeline.ScoreWorkers, scoreRunner.Handle)

	s.add(cfg, deps.Client, "context", bus.TopicUserContext, cfg.Pipeline.ContextWorkers, contextMirror(deps.Store))

	if deps.Sampler != nil {
		// A second group on station.telemetry: sampling must see every
		// observation regardless of feature-stage progress.
		s.add(cfg, deps.Client, "history", bus.TopicStationTelemetry, 1, historySampler(deps.Sampler))
	}
	return s
}

func (s *Supervisor) add(cfg *config.Config, client *redis.Client, name, topic string, workers int, handler bus.Handler) {
	consumer := bus.NewConsumer(client, bus.ConsumerConfig{
		Topic:      topic,
		Group:      cfg.Bus.GroupID + "-" + name,
		Name:       cfg.Bus.ClientID + "-" + name,
		Partitions: cfg.Bus.Partitions,
		Workers:    workers,
		Visibility: cfg.Bus.VisibilityTimeout,
	})
	s.stages = append(s.stages, stage{name: name, consumer: consumer, handler: handler})
}

// Start launches every stage and returns. Stage failures surface on Stop.
func (s *Supervisor) Start(ctx context.Context) {
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan error, 1)

	g, runCtx := errgroup.WithContext(runCtx)
	for _, st := range s.stages {
		st := st
		s.logger.Info().Str("stage", st.name).Msg("stage starting")
		g.Go(func() error {
			if err := st.consumer.Run(runCtx, st.handler); err != nil {
				s.logger.Error().Err(err).Str("stage", st.name).Msg("stage failed")
				return fmt.Errorf("stage %s: %w", st.name, err)
			}
			return nil
		})
	}
	go func() { s.done <- g.Wait() }()
}

// Stop cancels the stages and waits for in-flight messages to finish. When
// the drain budget runs out the remaining work is abandoned; unacknowledged
// messages redeliver to the next member of each group.
func (s *Supervisor) Stop() error {
	if s.cancel == nil {
		return nil
	}
	s.cancel()

	select {
	case err := <-s.done:
		s.logger.Info().Msg("pipeline drained")
		return err
	case <-time.After(s.drain):
		s.logger.Warn().Dur("budget", s.drain).Msg("pipeline drain budget exceeded")
		return fmt.Errorf("pipeline drain exceeded %s", s.drain)
	}
}

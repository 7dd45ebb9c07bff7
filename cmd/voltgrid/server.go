package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/voltgrid/voltgrid/pkg/api"
	"github.com/voltgrid/voltgrid/pkg/bus"
	"github.com/voltgrid/voltgrid/pkg/config"
	"github.com/voltgrid/voltgrid/pkg/events"
	"github.com/voltgrid/voltgrid/pkg/health"
	"github.com/voltgrid/voltgrid/pkg/ingest"
	"github.com/voltgrid/voltgrid/pkg/log"
	"github.com/voltgrid/voltgrid/pkg/metrics"
	"github.com/voltgrid/voltgrid/pkg/narrate"
	"github.com/voltgrid/voltgrid/pkg/optimize"
	"github.com/voltgrid/voltgrid/pkg/pipeline"
	"github.com/voltgrid/voltgrid/pkg/predict"
	"github.com/voltgrid/voltgrid/pkg/recommend"
	"github.com/voltgrid/voltgrid/pkg/repository"
	"github.com/voltgrid/voltgrid/pkg/statestore"
)

const (
	// connectTimeout bounds the whole dependency dial phase during startup.
	connectTimeout = 60 * time.Second

	// shutdownTimeout bounds the API drain during shutdown.
	shutdownTimeout = 15 * time.Second
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run a full VoltGrid node",
	Long: `Run a full VoltGrid node: the HTTP API, the streaming pipeline
stages, the metrics collector and the dependency health monitor,
all in one process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if port, _ := cmd.Flags().GetInt("api-port"); port > 0 {
			cfg.API.Port = port
		}

		fmt.Println("Starting VoltGrid node...")
		fmt.Printf("  API Address: %s\n", cfg.API.Addr())
		fmt.Printf("  Bus Brokers: %s\n", cfg.Bus.Brokers)
		fmt.Printf("  State Store: %s\n", cfg.StateStore.Addr)
		fmt.Println()

		ctx := context.Background()
		connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
		defer cancelConnect()

		store, err := statestore.New(connectCtx, cfg.StateStore)
		if err != nil {
			return fmt.Errorf("failed to connect state store: %w", err)
		}
		fmt.Println("✓ State store connected")

		busClient, err := bus.Connect(connectCtx, cfg.Bus)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to connect bus: %w", err)
		}
		producer := bus.NewProducer(busClient, cfg.Bus)
		fmt.Println("✓ Bus connected")

		repos, err := repository.Open(connectCtx, cfg.Database, cfg.Pipeline.HistoryEvery)
		if err != nil {
			_ = busClient.Close()
			_ = store.Close()
			return fmt.Errorf("failed to connect database: %w", err)
		}
		fmt.Println("✓ Database connected")

		broker := events.NewBroker()
		broker.Start()
		recorder := events.NewRecorder(broker, repos.Events)
		recorder.Start()

		gateway := predict.NewGateway(store, producer, broker, cfg.Models, cfg.Breaker)
		narrator := narrate.New(cfg.Narrator, broker)
		optimizer := optimize.New(store, repos.Stations, gateway)
		recs := recommend.NewService(optimizer, gateway, narrator, store,
			repos.Requests, repos.RecommendationLogs, producer, broker)
		ingestor := ingest.NewService(store, producer, broker)

		collector := metrics.NewCollector(store, map[string]metrics.Pinger{
			"statestore": store,
			"database":   repos,
			"bus":        busPinger{client: busClient},
		})
		collector.Start()

		monitor := health.NewMonitor(health.Config{})
		monitor.Register("model-service", health.NewHTTPChecker(cfg.Models.ServiceURL+"/health"))
		monitor.Start()

		supervisor := pipeline.New(cfg, pipeline.Deps{
			Client:      busClient,
			Store:       store,
			Producer:    producer,
			Predictions: gateway,
			Sampler:     repos.History,
		})
		supervisor.Start(ctx)
		fmt.Println("✓ Pipeline started")

		apiServer := api.NewServer(cfg.API, ingestor, recs, store)
		errCh := make(chan error, 1)
		go func() {
			if err := apiServer.Start(); err != nil {
				errCh <- fmt.Errorf("API server error: %w", err)
			}
		}()
		fmt.Println("✓ API server started")

		fmt.Println()
		fmt.Println("Node is running. Press Ctrl+C to stop.")

		// Wait for interrupt signal or API server error
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

		select {
		case <-sigCh:
			fmt.Println("\nShutting down...")
		case err := <-errCh:
			fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
		}

		// Reverse of startup: stop accepting requests, drain the stream
		// stages, then the background loops, then the connections.
		drainCtx, cancelDrain := context.WithTimeout(ctx, shutdownTimeout)
		defer cancelDrain()
		if err := apiServer.Shutdown(drainCtx); err != nil {
			fmt.Fprintf(os.Stderr, "API drain: %v\n", err)
		}
		if err := supervisor.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Pipeline drain: %v\n", err)
		}
		monitor.Stop()
		collector.Stop()
		recorder.Stop()
		broker.Stop()
		_ = busClient.Close()
		_ = repos.Close()
		_ = store.Close()

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Run the stream consumers without the API",
	Long: `Run only the streaming pipeline stages. Useful for scaling the
consumers independently of the API nodes; all stages join the same
consumer groups, so partitions are split across processes.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		fmt.Println("Starting VoltGrid pipeline worker...")
		fmt.Printf("  Bus Brokers: %s\n", cfg.Bus.Brokers)
		fmt.Printf("  State Store: %s\n", cfg.StateStore.Addr)
		fmt.Println()

		ctx := context.Background()
		connectCtx, cancelConnect := context.WithTimeout(ctx, connectTimeout)
		defer cancelConnect()

		store, err := statestore.New(connectCtx, cfg.StateStore)
		if err != nil {
			return fmt.Errorf("failed to connect state store: %w", err)
		}
		busClient, err := bus.Connect(connectCtx, cfg.Bus)
		if err != nil {
			_ = store.Close()
			return fmt.Errorf("failed to connect bus: %w", err)
		}
		producer := bus.NewProducer(busClient, cfg.Bus)

		repos, err := repository.Open(connectCtx, cfg.Database, cfg.Pipeline.HistoryEvery)
		if err != nil {
			_ = busClient.Close()
			_ = store.Close()
			return fmt.Errorf("failed to connect database: %w", err)
		}

		gateway := predict.NewGateway(store, producer, nil, cfg.Models, cfg.Breaker)

		collector := metrics.NewCollector(store, map[string]metrics.Pinger{
			"statestore": store,
			"database":   repos,
			"bus":        busPinger{client: busClient},
		})
		collector.Start()

		supervisor := pipeline.New(cfg, pipeline.Deps{
			Client:      busClient,
			Store:       store,
			Producer:    producer,
			Predictions: gateway,
			Sampler:     repos.History,
		})
		supervisor.Start(ctx)

		fmt.Println("✓ Pipeline started")
		fmt.Println()
		fmt.Println("Worker is running. Press Ctrl+C to stop.")

		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
		<-sigCh
		fmt.Println("\nShutting down...")

		if err := supervisor.Stop(); err != nil {
			fmt.Fprintf(os.Stderr, "Pipeline drain: %v\n", err)
		}
		collector.Stop()
		_ = busClient.Close()
		_ = repos.Close()
		_ = store.Close()

		fmt.Println("✓ Shutdown complete")
		return nil
	},
}

func init() {
	serverCmd.Flags().String("config", "", "Path to YAML config file")
	serverCmd.Flags().Int("api-port", 0, "Override the configured API port")
	pipelineCmd.Flags().String("config", "", "Path to YAML config file")
}

// loadConfig reads configuration for a subcommand and initializes the global
// logger and the version gauge before anything else runs.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log.Init(log.Config{Level: cfg.Log.Level, JSON: cfg.Log.JSON})
	metrics.SetVersion(Version)
	return cfg, nil
}

// busPinger adapts the raw bus client to the collector's Pinger interface.
type busPinger struct {
	client *redis.Client
}

func (p busPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the full runtime configuration tree. Values resolve in order:
// defaults, then an optional YAML file, then environment variables.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Bus        BusConfig        `yaml:"bus"`
	StateStore StateStoreConfig `yaml:"stateStore"`
	Database   DatabaseConfig   `yaml:"database"`
	Scoring    ScoringConfig    `yaml:"scoring"`
	Features   FeaturesConfig   `yaml:"features"`
	Breaker    BreakerConfig    `yaml:"breaker"`
	Models     ModelsConfig     `yaml:"models"`
	Narrator   NarratorConfig   `yaml:"narrator"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	Log        LogConfig        `yaml:"log"`
}

// APIConfig configures the HTTP surface.
type APIConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"requestTimeout"`
}

// Addr returns the listen address.
func (c APIConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// BusConfig configures the message bus adapter.
type BusConfig struct {
	Brokers           string        `yaml:"brokers"`
	ClientID          string        `yaml:"clientId"`
	GroupID           string        `yaml:"groupId"`
	Partitions        int           `yaml:"partitions"`
	VisibilityTimeout time.Duration `yaml:"visibilityTimeout"`
	ConnectAttempts   int           `yaml:"connectAttempts"`
}

// StateStoreConfig configures the shared state store adapter and cache TTLs.
type StateStoreConfig struct {
	Addr          string        `yaml:"addr"`
	Password      string        `yaml:"password"`
	DB            int           `yaml:"db"`
	KeyPrefix     string        `yaml:"keyPrefix"`
	FeatureTTL    time.Duration `yaml:"featureTTL"`
	ScoreTTL      time.Duration `yaml:"scoreTTL"`
	PredictionTTL time.Duration `yaml:"predictionTTL"`
	SessionTTL    time.Duration `yaml:"sessionTTL"`
	HealthTTL     time.Duration `yaml:"healthTTL"`
}

// DatabaseConfig configures the durable repository.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	SSLMode  string `yaml:"sslMode"`
	PoolSize int    `yaml:"poolSize"`
}

// DSN returns the postgres connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// ScoringConfig carries the component weights of the utility function.
type ScoringConfig struct {
	WeightWaitTime        float64 `yaml:"weightWaitTime"`
	WeightAvailability    float64 `yaml:"weightAvailability"`
	WeightReliability     float64 `yaml:"weightReliability"`
	WeightDistance        float64 `yaml:"weightDistance"`
	WeightEnergyStability float64 `yaml:"weightEnergyStability"`
}

// FeaturesConfig carries normalization ranges and the distance-penalty
// placeholder parameters used by the feature engineer.
type FeaturesConfig struct {
	WaitTimeMin       float64 `yaml:"waitTimeMin"`
	WaitTimeMax       float64 `yaml:"waitTimeMax"`
	DistanceMin       float64 `yaml:"distanceMin"`
	DistanceMax       float64 `yaml:"distanceMax"`
	NominalETAMinutes float64 `yaml:"nominalEtaMinutes"`
	TrafficFactor     float64 `yaml:"trafficFactor"`
}

// BreakerConfig configures the per-model circuit breaker.
type BreakerConfig struct {
	Threshold uint32        `yaml:"threshold"`
	Window    time.Duration `yaml:"window"`
	Cooldown  time.Duration `yaml:"cooldown"`
}

// ModelsConfig configures the external prediction service.
type ModelsConfig struct {
	ServiceURL  string        `yaml:"serviceUrl"`
	CallTimeout time.Duration `yaml:"callTimeout"`
	MaxParallel int           `yaml:"maxParallel"`
}

// NarratorConfig configures the LLM explanation gateway.
type NarratorConfig struct {
	APIKey      string        `yaml:"apiKey"`
	Model       string        `yaml:"model"`
	MaxTokens   int           `yaml:"maxTokens"`
	Temperature float64       `yaml:"temperature"`
	CallTimeout time.Duration `yaml:"callTimeout"`
}

// PipelineConfig configures consumer stages.
type PipelineConfig struct {
	FeatureWorkers int           `yaml:"featureWorkers"`
	ScoreWorkers   int           `yaml:"scoreWorkers"`
	ContextWorkers int           `yaml:"contextWorkers"`
	DrainTimeout   time.Duration `yaml:"drainTimeout"`
	HistoryEvery   int           `yaml:"historyEvery"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host:           "0.0.0.0",
			Port:           3000,
			RequestTimeout: 10 * time.Second,
		},
		Bus: BusConfig{
			Brokers:           "localhost:6379",
			ClientID:          "voltgrid",
			GroupID:           "voltgrid",
			Partitions:        8,
			VisibilityTimeout: 30 * time.Second,
			ConnectAttempts:   30,
		},
		StateStore: StateStoreConfig{
			Addr:          "localhost:6379",
			DB:            0,
			KeyPrefix:     "",
			FeatureTTL:    30 * time.Second,
			ScoreTTL:      30 * time.Second,
			PredictionTTL: 60 * time.Second,
			SessionTTL:    time.Hour,
			HealthTTL:     2 * time.Minute,
		},
		Database: DatabaseConfig{
			Host:     "localhost",
			Port:     5432,
			User:     "voltgrid",
			Password: "voltgrid",
			Name:     "voltgrid",
			SSLMode:  "disable",
			PoolSize: 10,
		},
		Scoring: ScoringConfig{
			WeightWaitTime:        0.25,
			WeightAvailability:    0.20,
			WeightReliability:     0.20,
			WeightDistance:        0.20,
			WeightEnergyStability: 0.15,
		},
		Features: FeaturesConfig{
			WaitTimeMin:       0,
			WaitTimeMax:       120,
			DistanceMin:       0,
			DistanceMax:       100,
			NominalETAMinutes: 15,
			TrafficFactor:     1.2,
		},
		Breaker: BreakerConfig{
			Threshold: 5,
			Window:    30 * time.Second,
			Cooldown:  30 * time.Second,
		},
		Models: ModelsConfig{
			ServiceURL:  "http://localhost:8501",
			CallTimeout: 3 * time.Second,
			MaxParallel: 8,
		},
		Narrator: NarratorConfig{
			Model:       "claude-3-5-haiku-latest",
			MaxTokens:   300,
			Temperature: 0.7,
			CallTimeout: 5 * time.Second,
		},
		Pipeline: PipelineConfig{
			FeatureWorkers: 4,
			ScoreWorkers:   4,
			ContextWorkers: 2,
			DrainTimeout:   10 * time.Second,
			HistoryEvery:   10,
		},
		Log: LogConfig{
			Level: "info",
			JSON:  true,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file, and
// environment overrides, then validates it.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	envInt("API_PORT", &c.API.Port)

	envString("BUS_BROKERS", &c.Bus.Brokers)
	envString("BUS_CLIENT_ID", &c.Bus.ClientID)
	envString("BUS_GROUP_ID", &c.Bus.GroupID)
	envInt("BUS_PARTITIONS", &c.Bus.Partitions)

	envString("STATE_STORE_ADDR", &c.StateStore.Addr)
	envString("STATE_STORE_PASSWORD", &c.StateStore.Password)
	envInt("STATE_STORE_DB", &c.StateStore.DB)
	envString("STATE_STORE_KEY_PREFIX", &c.StateStore.KeyPrefix)
	envSeconds("FEATURE_CACHE_TTL", &c.StateStore.FeatureTTL)
	envSeconds("SCORE_CACHE_TTL", &c.StateStore.ScoreTTL)
	envSeconds("PREDICTION_CACHE_TTL", &c.StateStore.PredictionTTL)
	envSeconds("SESSION_CACHE_TTL", &c.StateStore.SessionTTL)

	envString("DB_HOST", &c.Database.Host)
	envInt("DB_PORT", &c.Database.Port)
	envString("DB_USER", &c.Database.User)
	envString("DB_PASSWORD", &c.Database.Password)
	envString("DB_NAME", &c.Database.Name)
	envInt("DB_POOL_SIZE", &c.Database.PoolSize)

	envFloat("WEIGHT_WAIT_TIME", &c.Scoring.WeightWaitTime)
	envFloat("WEIGHT_AVAILABILITY", &c.Scoring.WeightAvailability)
	envFloat("WEIGHT_RELIABILITY", &c.Scoring.WeightReliability)
	envFloat("WEIGHT_DISTANCE", &c.Scoring.WeightDistance)
	envFloat("WEIGHT_ENERGY_STABILITY", &c.Scoring.WeightEnergyStability)

	envUint32("CIRCUIT_BREAKER_THRESHOLD", &c.Breaker.Threshold)
	envMillis("CIRCUIT_BREAKER_TIMEOUT", &c.Breaker.Cooldown)

	envString("MODEL_SERVICE_URL", &c.Models.ServiceURL)
	envString("ANTHROPIC_API_KEY", &c.Narrator.APIKey)

	envString("LOG_LEVEL", &c.Log.Level)

	envInt("FEATURE_WORKERS", &c.Pipeline.FeatureWorkers)
	envInt("SCORE_WORKERS", &c.Pipeline.ScoreWorkers)
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("invalid api port %d", c.API.Port)
	}
	if c.Bus.Partitions <= 0 {
		return fmt.Errorf("bus partitions must be positive, got %d", c.Bus.Partitions)
	}
	if c.Database.PoolSize <= 0 {
		return fmt.Errorf("database pool size must be positive, got %d", c.Database.PoolSize)
	}
	for name, ttl := range map[string]time.Duration{
		"featureTTL":    c.StateStore.FeatureTTL,
		"scoreTTL":      c.StateStore.ScoreTTL,
		"predictionTTL": c.StateStore.PredictionTTL,
		"sessionTTL":    c.StateStore.SessionTTL,
		"healthTTL":     c.StateStore.HealthTTL,
	} {
		if ttl <= 0 {
			return fmt.Errorf("state store %s must be positive", name)
		}
	}
	for name, w := range map[string]float64{
		"weightWaitTime":        c.Scoring.WeightWaitTime,
		"weightAvailability":    c.Scoring.WeightAvailability,
		"weightReliability":     c.Scoring.WeightReliability,
		"weightDistance":        c.Scoring.WeightDistance,
		"weightEnergyStability": c.Scoring.WeightEnergyStability,
	} {
		if w < 0 {
			return fmt.Errorf("scoring %s must be non-negative, got %v", name, w)
		}
	}
	if c.Features.WaitTimeMax < c.Features.WaitTimeMin {
		return fmt.Errorf("features waitTimeMax < waitTimeMin")
	}
	if c.Features.DistanceMax < c.Features.DistanceMin {
		return fmt.Errorf("features distanceMax < distanceMin")
	}
	if c.Pipeline.FeatureWorkers <= 0 || c.Pipeline.ScoreWorkers <= 0 {
		return fmt.Errorf("pipeline worker counts must be positive")
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func envUint32(key string, dst *uint32) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func envFloat(key string, dst *float64) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func envSeconds(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
		}
	}
}

func envMillis(key string, dst *time.Duration) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Millisecond
		}
	}
}

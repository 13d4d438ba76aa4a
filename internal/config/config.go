// Package config provides configuration loading and management for the
// orchestrator. It supports layered precedence (flag > env > file >
// default) and file-watch hot reload, and provides a unified
// configuration structure for every component (embedding, vectordb,
// chunking, concurrency, memory, watchdog, worker, server).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/iasik/orchestrator/internal/concurrency"
	"github.com/iasik/orchestrator/internal/llm"
	"github.com/iasik/orchestrator/internal/memory"
	"github.com/iasik/orchestrator/internal/router"
	"github.com/iasik/orchestrator/internal/watchdog"
)

// Config represents the global application configuration. All fields
// are loaded from the layered viper sources (flag > env > file >
// default); see NewManager.
type Config struct {
	Embedding   EmbeddingConfig     `mapstructure:"embedding"`
	LLM         LLMConfig           `mapstructure:"llm"`
	VectorDB    VectorDBConfig      `mapstructure:"vectordb"`
	Projects    ProjectsConfig      `mapstructure:"projects"`
	Chunking    ChunkingConfig      `mapstructure:"chunking"`
	Cache       CacheConfig         `mapstructure:"cache"`
	Server      ServerConfig        `mapstructure:"server"`
	Logging     LoggingConfig       `mapstructure:"logging"`
	Timeouts    llm.TimeoutStrategy `mapstructure:"timeout_strategy"`
	Concurrency concurrency.Config  `mapstructure:"concurrency"`
	Memory      memory.Config       `mapstructure:"memory_management"`
	Rag         router.Config       `mapstructure:"rag"`
	Watchdog    watchdog.Config     `mapstructure:"watchdog"`
	Worker      WorkerConfig        `mapstructure:"worker"`
}

// WorkerConfig mirrors the Configuration Surface's Worker block
// (spec.md §6): job-level concurrency and retry policy.
type WorkerConfig struct {
	MaxConcurrentJobs       int `mapstructure:"max_concurrent_jobs"`
	CheckpointIntervalFiles int `mapstructure:"checkpoint_interval_files"`
	MaxRetryAttempts        int `mapstructure:"max_retry_attempts"`
	RetryDelaySeconds       int `mapstructure:"retry_delay_seconds"`
}

// DefaultWorkerConfig mirrors spec.md §6 Worker defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{MaxConcurrentJobs: 3, CheckpointIntervalFiles: 100, MaxRetryAttempts: 3, RetryDelaySeconds: 30}
}

// RetryDelay returns RetryDelaySeconds as a time.Duration.
func (w WorkerConfig) RetryDelay() time.Duration {
	return time.Duration(w.RetryDelaySeconds) * time.Second
}

// EmbeddingConfig holds embedding provider settings.
// Validation accepts ollama, openai and huggingface; embedder.NewProvider
// builds ollama and openai providers and returns an error for huggingface.
type EmbeddingConfig struct {
	// Provider name: ollama | openai | huggingface
	Provider string `mapstructure:"provider"`

	// Model name (varies by provider)
	Model string `mapstructure:"model"`

	// Provider endpoint URL
	Endpoint string `mapstructure:"endpoint"`

	// Vector dimensions (must match model output)
	Dimensions int `mapstructure:"dimensions"`

	// Batch size for bulk embedding requests
	BatchSize int `mapstructure:"batch_size"`

	// Request timeout
	Timeout string `mapstructure:"timeout"`

	// Environment variable name for API key (used by OpenAI, etc.)
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// LLMConfig holds the reasoning model settings the Agent Orchestrator's
// LLM-backed agents call through, distinct from EmbeddingConfig's
// embedding model.
type LLMConfig struct {
	// Model name, e.g. gpt-4o-mini
	Model string `mapstructure:"model"`

	// Environment variable name holding the API key
	APIKeyEnv string `mapstructure:"api_key_env"`
}

// GetAPIKey returns the API key from environment variable.
func (l *LLMConfig) GetAPIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

// VectorDBConfig holds vector database settings.
// Validation accepts qdrant, milvus, weaviate and hnsw; vectordb.NewProvider
// builds only qdrant and hnsw (alias "memory") and returns an error for
// milvus and weaviate.
type VectorDBConfig struct {
	// Provider name: qdrant | milvus | weaviate | hnsw
	Provider string `mapstructure:"provider"`

	// Provider endpoint URL
	Endpoint string `mapstructure:"endpoint"`

	// Collection/index name for storing vectors
	CollectionName string `mapstructure:"collection_name"`

	// Request timeout
	Timeout string `mapstructure:"timeout"`
}

// ProjectsConfig holds project discovery settings.
type ProjectsConfig struct {
	// Directory containing per-project YAML configs
	ConfigDir string `mapstructure:"config_dir"`

	// Base path where project source code is mounted
	SourceBasePath string `mapstructure:"source_base_path"`
}

// ChunkingConfig holds default chunking parameters.
// These can be overridden per-project.
type ChunkingConfig struct {
	// Minimum tokens per chunk (smaller chunks are merged)
	MinTokens int `mapstructure:"min_tokens"`

	// Ideal chunk size in tokens
	IdealTokens int `mapstructure:"ideal_tokens"`

	// Maximum tokens per chunk
	MaxTokens int `mapstructure:"max_tokens"`

	// Tokens of overlap between consecutive sliding-window chunks
	OverlapTokens int `mapstructure:"overlap_tokens"`

	// Whether to merge small chunks into parent scope
	MergeSmallChunks bool `mapstructure:"merge_small_chunks"`

	// Whether to use language-specific semantic splitting before falling
	// back to the sliding window.
	UseSemanticSplitting bool `mapstructure:"use_semantic_splitting"`

	// Whether chunk rows retain their raw text content or only a hash.
	StoreChunkText bool `mapstructure:"store_chunk_text"`
}

// CacheConfig holds index cache settings.
type CacheConfig struct {
	// Directory for storing cache files
	Dir string `mapstructure:"dir"`

	// Cache format (currently only "json" is supported)
	Format string `mapstructure:"format"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Port number to listen on
	Port int `mapstructure:"port"`

	// Read timeout for incoming requests
	ReadTimeout string `mapstructure:"read_timeout"`

	// Write timeout for outgoing responses
	WriteTimeout string `mapstructure:"write_timeout"`

	// Graceful shutdown timeout
	ShutdownTimeout string `mapstructure:"shutdown_timeout"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Log level: debug | info | warn | error
	Level string `mapstructure:"level"`

	// Output format: json | text
	Format string `mapstructure:"format"`
}

// GetTimeout parses and returns the embedding timeout duration.
func (e *EmbeddingConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(e.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetAPIKey returns the API key from environment variable.
func (e *EmbeddingConfig) GetAPIKey() string {
	if e.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(e.APIKeyEnv)
}

// GetTimeout parses and returns the vectordb timeout duration.
func (v *VectorDBConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(v.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetReadTimeout parses and returns the server read timeout.
func (s *ServerConfig) GetReadTimeout() time.Duration {
	d, err := time.ParseDuration(s.ReadTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetWriteTimeout parses and returns the server write timeout.
func (s *ServerConfig) GetWriteTimeout() time.Duration {
	d, err := time.ParseDuration(s.WriteTimeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// GetShutdownTimeout parses and returns the graceful shutdown timeout.
func (s *ServerConfig) GetShutdownTimeout() time.Duration {
	d, err := time.ParseDuration(s.ShutdownTimeout)
	if err != nil {
		return 10 * time.Second
	}
	return d
}

// Manager handles layered configuration loading and file-watch hot
// reload, backed by viper the way Sumatoshi-tech-codefang and
// leefowlercu-agentic-memorizer back their own config managers,
// instead of the teacher's bare os.ReadFile re-read.
type Manager struct {
	v          *viper.Viper
	configPath string
	config     *Config
	mu         sync.RWMutex
	onChange   []func(*Config)
}

// NewManager creates a configuration manager rooted at configPath.
// Precedence is flag > env > file > default; callers needing flag
// binding should call Viper() and bind pflags before Load.
func NewManager(configPath string) *Manager {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	}
	v.SetEnvPrefix("ORCHESTRATOR")
	v.AutomaticEnv()
	applyViperDefaults(v)

	return &Manager{v: v, configPath: configPath, onChange: make([]func(*Config), 0)}
}

// Viper exposes the underlying *viper.Viper for callers that need to
// bind cobra/pflag flags before the first Load.
func (m *Manager) Viper() *viper.Viper { return m.v }

// Load reads and parses the configuration from every layered source.
func (m *Manager) Load() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.load()
}

// load is the unlocked core of Load/Reload.
func (m *Manager) load() error {
	if m.configPath != "" {
		if _, err := os.Stat(m.configPath); err == nil {
			if err := m.v.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read config file: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config file: %w", err)
		}
	}

	var cfg Config
	if err := m.v.Unmarshal(&cfg); err != nil {
		return fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	m.config = &cfg
	return nil
}

// Reload reloads the configuration and notifies OnChange listeners.
func (m *Manager) Reload() error {
	if err := m.Load(); err != nil {
		return err
	}
	cfg := m.Get()
	for _, fn := range m.onChange {
		fn(cfg)
	}
	return nil
}

// WatchForChanges starts an fsnotify watch on the config file and
// reloads on every write, routing reload failures to onError instead
// of panicking so a malformed edit doesn't take down the running
// process. Grounded on the fsnotify watch loop
// leefowlercu-agentic-memorizer runs over its own config/project
// files.
func (m *Manager) WatchForChanges(onError func(error)) {
	if m.configPath == "" {
		return
	}
	m.v.OnConfigChange(func(fsnotify.Event) {
		if err := m.Reload(); err != nil && onError != nil {
			onError(err)
		}
	})
	m.v.WatchConfig()
}

// Get returns the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.config
}

// OnChange registers a callback invoked whenever Reload succeeds.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// applyViperDefaults seeds every Configuration Surface default
// (spec.md §6) so a Config is fully populated even with an empty or
// absent config file.
func applyViperDefaults(v *viper.Viper) {
	v.SetDefault("embedding.provider", "ollama")
	v.SetDefault("embedding.model", "nomic-embed-text")
	v.SetDefault("embedding.endpoint", "http://ollama:11434")
	v.SetDefault("embedding.dimensions", 768)
	v.SetDefault("embedding.batch_size", 16)
	v.SetDefault("embedding.timeout", "30s")

	v.SetDefault("llm.model", "gpt-4o-mini")
	v.SetDefault("llm.api_key_env", "OPENAI_API_KEY")

	v.SetDefault("vectordb.provider", "qdrant")
	v.SetDefault("vectordb.endpoint", "http://qdrant:6333")
	v.SetDefault("vectordb.collection_name", "code_chunks")
	v.SetDefault("vectordb.timeout", "30s")

	v.SetDefault("projects.config_dir", "/app/configs/projects")
	v.SetDefault("projects.source_base_path", "/sources")

	v.SetDefault("chunking.min_tokens", 200)
	v.SetDefault("chunking.ideal_tokens", 500)
	v.SetDefault("chunking.max_tokens", 800)
	v.SetDefault("chunking.overlap_tokens", 50)
	v.SetDefault("chunking.use_semantic_splitting", true)

	v.SetDefault("cache.dir", "/app/data/index-cache")
	v.SetDefault("cache.format", "json")

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	t := llm.DefaultTimeoutStrategy()
	v.SetDefault("timeout_strategy.basetimeoutseconds", t.BaseTimeoutSeconds)
	v.SetDefault("timeout_strategy.pertokentimeoutms", t.PerTokenTimeoutMs)
	v.SetDefault("timeout_strategy.mintimeoutseconds", t.MinTimeoutSeconds)
	v.SetDefault("timeout_strategy.maxtimeoutseconds", t.MaxTimeoutSeconds)
	v.SetDefault("timeout_strategy.streamingtimeoutmultiplier", t.StreamingTimeoutMultiplier)
	v.SetDefault("timeout_strategy.retrytimeoutmultiplier", t.RetryTimeoutMultiplier)
	v.SetDefault("timeout_strategy.enablegracefuldegradation", t.EnableGracefulDegradation)
	v.SetDefault("timeout_strategy.enableconnectionpooling", t.EnableConnectionPooling)
	v.SetDefault("timeout_strategy.keepalivetimeoutseconds", t.KeepAliveTimeoutSeconds)
	v.SetDefault("timeout_strategy.useadaptivetimeout", t.UseAdaptiveTimeout)

	c := concurrency.DefaultConfig()
	v.SetDefault("concurrency.embedding", c.Embedding)
	v.SetDefault("concurrency.reasoning", c.Reasoning)
	v.SetDefault("concurrency.fileread", c.FileRead)

	mem := memory.DefaultConfig()
	v.SetDefault("memory_management.maxworkermemorymb", mem.MaxWorkerMemoryMB)
	v.SetDefault("memory_management.warningthresholdpercent", mem.WarningThresholdPercent)
	v.SetDefault("memory_management.pausethresholdpercent", mem.PauseThresholdPercent)
	v.SetDefault("memory_management.checkintervalseconds", mem.CheckIntervalSeconds)

	r := router.DefaultConfig()
	v.SetDefault("rag.directsendthresholdbytes", r.DirectSendThresholdBytes)
	v.SetDefault("rag.ragchunkthresholdbytes", r.RagChunkThresholdBytes)
	v.SetDefault("rag.allowlargefiles", r.AllowLargeFiles)
	v.SetDefault("rag.risktopk", r.RiskTopK)
	v.SetDefault("rag.riskthreshold", r.RiskThreshold)
	v.SetDefault("rag.approvalthresholdtokens", r.ApprovalThresholdTokens)
	v.SetDefault("rag.excludepaths", r.ExcludePaths)
	v.SetDefault("rag.binaryextensions", r.BinaryExtensions)

	wd := watchdog.DefaultConfig()
	v.SetDefault("watchdog.checkintervalseconds", wd.CheckIntervalSeconds)
	v.SetDefault("watchdog.maxprojectdurationseconds", wd.MaxProjectDurationSeconds)
	v.SetDefault("watchdog.maxheartbeatintervalseconds", wd.MaxHeartbeatIntervalSeconds)
	v.SetDefault("watchdog.autocancelstuck", wd.AutoCancelStuck)
	v.SetDefault("watchdog.stuckdetectionthreshold", wd.StuckDetectionThreshold)

	w := DefaultWorkerConfig()
	v.SetDefault("worker.max_concurrent_jobs", w.MaxConcurrentJobs)
	v.SetDefault("worker.checkpoint_interval_files", w.CheckpointIntervalFiles)
	v.SetDefault("worker.max_retry_attempts", w.MaxRetryAttempts)
	v.SetDefault("worker.retry_delay_seconds", w.RetryDelaySeconds)
}

// validate checks the configuration for errors.
func validate(cfg *Config) error {
	validEmbeddingProviders := map[string]bool{"ollama": true, "openai": true, "huggingface": true}
	if !validEmbeddingProviders[cfg.Embedding.Provider] {
		return fmt.Errorf("invalid embedding provider: %s", cfg.Embedding.Provider)
	}
	if cfg.Embedding.Dimensions <= 0 {
		return fmt.Errorf("embedding dimensions must be positive")
	}

	validVectorDBProviders := map[string]bool{"qdrant": true, "milvus": true, "weaviate": true, "hnsw": true}
	if !validVectorDBProviders[cfg.VectorDB.Provider] {
		return fmt.Errorf("invalid vectordb provider: %s", cfg.VectorDB.Provider)
	}

	if cfg.Chunking.MinTokens >= cfg.Chunking.MaxTokens {
		return fmt.Errorf("min_tokens must be less than max_tokens")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535")
	}

	return nil
}

// LoadFromEnv loads configuration from the path specified in the
// CONFIG_PATH env var (or configs/config.yaml if unset).
func LoadFromEnv() (*Manager, error) {
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "configs/config.yaml"
	}

	if !filepath.IsAbs(configPath) {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get working directory: %w", err)
		}
		configPath = filepath.Join(wd, configPath)
	}

	manager := NewManager(configPath)
	if err := manager.Load(); err != nil {
		return nil, err
	}

	return manager, nil
}

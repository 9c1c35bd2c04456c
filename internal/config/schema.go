package config

// Config holds finalyzer configuration.
// Stored at: {home}/config.yaml
type Config struct {
	Server  ServerCfg  `mapstructure:"server" yaml:"server"`
	Storage StorageCfg `mapstructure:"storage" yaml:"storage"`
	Queue   QueueCfg   `mapstructure:"queue" yaml:"queue"`
	Engine  EngineCfg  `mapstructure:"engine" yaml:"engine"`
	Workers WorkersCfg `mapstructure:"workers" yaml:"workers"`

	// DefaultQuery is used when an analysis request omits the query
	// or sends only whitespace.
	DefaultQuery string `mapstructure:"default_query" yaml:"default_query"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// StorageCfg configures local storage paths. An empty database path
// falls back to the home directory layout ({home}/finalyzer.db).
// Uploads always live under {home}/uploads so the --home flag moves
// both together.
type StorageCfg struct {
	DatabasePath string `mapstructure:"database_path" yaml:"database_path"`
}

// QueueCfg configures the job queue.
type QueueCfg struct {
	Driver     string `mapstructure:"driver" yaml:"driver"`           // "memory" or "nats"
	URL        string `mapstructure:"url" yaml:"url"`                 // NATS server URL
	Subject    string `mapstructure:"subject" yaml:"subject"`         // NATS subject for job messages
	QueueGroup string `mapstructure:"queue_group" yaml:"queue_group"` // NATS queue group for workers
	Buffer     int    `mapstructure:"buffer" yaml:"buffer"`           // Memory queue buffer size
}

// EngineCfg configures the analysis engine.
type EngineCfg struct {
	Model            string  `mapstructure:"model" yaml:"model"`
	APIKey           string  `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL          string  `mapstructure:"base_url" yaml:"base_url"`
	Temperature      float64 `mapstructure:"temperature" yaml:"temperature"`
	TimeoutSeconds   int     `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	VerifyMaxTurns   int     `mapstructure:"verify_max_turns" yaml:"verify_max_turns"`
	AnalyzeMaxTurns  int     `mapstructure:"analyze_max_turns" yaml:"analyze_max_turns"`
	MaxDocumentChars int     `mapstructure:"max_document_chars" yaml:"max_document_chars"`
}

// WorkersCfg configures the analysis worker pool.
type WorkersCfg struct {
	Count             int `mapstructure:"count" yaml:"count"`
	JobTimeoutSeconds int `mapstructure:"job_timeout_seconds" yaml:"job_timeout_seconds"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "0.0.0.0",
			Port: 8000,
		},
		Storage: StorageCfg{},
		Queue: QueueCfg{
			Driver:     "memory",
			URL:        "nats://127.0.0.1:4222",
			Subject:    "finalyzer.jobs",
			QueueGroup: "analyzers",
			Buffer:     256,
		},
		Engine: EngineCfg{
			Model:            "gpt-4o-mini",
			APIKey:           "${OPENAI_API_KEY}",
			Temperature:      0.2,
			TimeoutSeconds:   300,
			VerifyMaxTurns:   3,
			AnalyzeMaxTurns:  5,
			MaxDocumentChars: 120000,
		},
		Workers: WorkersCfg{
			Count:             4,
			JobTimeoutSeconds: 600,
		},
		DefaultQuery: "Analyze this financial document for investment insights",
	}
}

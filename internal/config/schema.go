package config

import "time"

// Config holds sprout configuration.
// Stored at: ~/.sprout/config.yaml
type Config struct {
	Server   ServerCfg   `mapstructure:"server" yaml:"server"`
	Docstore DocstoreCfg `mapstructure:"docstore" yaml:"docstore"`
	Objstore ObjstoreCfg `mapstructure:"objstore" yaml:"objstore"`
	GenAI    GenAICfg    `mapstructure:"genai" yaml:"genai"`
	Encode   EncodeCfg   `mapstructure:"encode" yaml:"encode"`
}

// ServerCfg configures the HTTP server.
type ServerCfg struct {
	Host string `mapstructure:"host" yaml:"host"`
	Port int    `mapstructure:"port" yaml:"port"`
}

// DocstoreCfg holds CouchDB connection and container settings.
type DocstoreCfg struct {
	URL      string `mapstructure:"url" yaml:"url"`
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"` // Supports ${ENV_VAR} syntax
	// Managed controls whether the server owns the CouchDB container
	// lifecycle. Disable when pointing at an external CouchDB.
	Managed       bool   `mapstructure:"managed" yaml:"managed"`
	ContainerName string `mapstructure:"container_name" yaml:"container_name"`
	Image         string `mapstructure:"image" yaml:"image"`
	Port          string `mapstructure:"port" yaml:"port"`
}

// ObjstoreCfg holds MinIO connection settings.
type ObjstoreCfg struct {
	Endpoint  string `mapstructure:"endpoint" yaml:"endpoint"`
	AccessKey string `mapstructure:"access_key" yaml:"access_key"` // Supports ${ENV_VAR} syntax
	SecretKey string `mapstructure:"secret_key" yaml:"secret_key"` // Supports ${ENV_VAR} syntax
	UseSSL    bool   `mapstructure:"use_ssl" yaml:"use_ssl"`
	Bucket    string `mapstructure:"bucket" yaml:"bucket"`
	// Domain is the public base URL artifacts are served from; defaults
	// to the endpoint.
	Domain string `mapstructure:"domain" yaml:"domain"`
}

// GenAICfg configures the generation service client.
type GenAICfg struct {
	APIKey             string        `mapstructure:"api_key" yaml:"api_key"` // Supports ${ENV_VAR} syntax
	BaseURL            string        `mapstructure:"base_url" yaml:"base_url"`
	TextModel          string        `mapstructure:"text_model" yaml:"text_model"`
	ImageModel         string        `mapstructure:"image_model" yaml:"image_model"`
	ImageFallbackModel string        `mapstructure:"image_fallback_model" yaml:"image_fallback_model"`
	ResearchModel      string        `mapstructure:"research_model" yaml:"research_model"`
	PollInterval       time.Duration `mapstructure:"poll_interval" yaml:"poll_interval"`
	PollTimeout        time.Duration `mapstructure:"poll_timeout" yaml:"poll_timeout"`
}

// EncodeCfg configures the base64 encode pool.
type EncodeCfg struct {
	Workers int `mapstructure:"workers" yaml:"workers"`
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerCfg{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Docstore: DocstoreCfg{
			URL:           "http://localhost:5984",
			Username:      "admin",
			Password:      "sprout",
			Managed:       true,
			ContainerName: "sprout-couchdb",
			Image:         "couchdb:3",
			Port:          "5984",
		},
		Objstore: ObjstoreCfg{
			Endpoint:  "localhost:9000",
			AccessKey: "minioadmin",
			SecretKey: "minioadmin",
			Bucket:    "sprout-artifacts",
		},
		GenAI: GenAICfg{
			APIKey:       "${SPROUT_GENAI_API_KEY}",
			PollInterval: 15 * time.Second,
			PollTimeout:  20 * time.Minute,
		},
		Encode: EncodeCfg{
			Workers: 2,
		},
	}
}

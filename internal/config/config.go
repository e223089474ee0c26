package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Detection DetectionConfig `mapstructure:"detection"`
	LLM       LLMConfig       `mapstructure:"llm"`
	Taxonomy  TaxonomyConfig  `mapstructure:"taxonomy"`
	Gallery   GalleryConfig   `mapstructure:"gallery"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Uploads   UploadsConfig   `mapstructure:"uploads"`
}

type ServerConfig struct {
	Port int        `mapstructure:"port"`
	Mode string     `mapstructure:"mode"`
	CORS CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // postgres or sqlite
	URL             string        `mapstructure:"url"`    // postgres DSN / connection URL
	Path            string        `mapstructure:"path"`   // sqlite file path
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN returns the driver-appropriate connection string.
func (c *DatabaseConfig) DSN() string {
	if c.Driver == "postgres" {
		return c.URL
	}
	return c.Path
}

// DetectionConfig configures the external object-detection endpoint.
type DetectionConfig struct {
	BaseURL string        `mapstructure:"base_url"`
	Model   string        `mapstructure:"model"`
	Version string        `mapstructure:"version"`
	APIKey  string        `mapstructure:"api_key"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// LLMConfig configures the OpenAI-compatible completion endpoint used for
// knowledge enrichment.
type LLMConfig struct {
	BaseURL     string        `mapstructure:"base_url"`
	Model       string        `mapstructure:"model"`
	APIKey      string        `mapstructure:"api_key"`
	Temperature float32       `mapstructure:"temperature"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// TaxonomyConfig points at the classification-taxonomy source for the
// disease label list.
type TaxonomyConfig struct {
	ListURL string        `mapstructure:"list_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

// GalleryConfig points at the reference-image gallery page that is scraped
// for per-disease images.
type GalleryConfig struct {
	SourceURL string        `mapstructure:"source_url"`
	ImageHost string        `mapstructure:"image_host"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type StorageConfig struct {
	Type      string `mapstructure:"type"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
	Folder    string `mapstructure:"folder"`
}

type CacheConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type UploadsConfig struct {
	TempDir     string `mapstructure:"temp_dir"`
	MaxSizeMB   int    `mapstructure:"max_size_mb"`
	SweepOnBoot bool   `mapstructure:"sweep_on_boot"`
}

// Load reads configuration from an optional YAML file plus environment
// variables. A .env file is honored if present.
func Load(configPath string) (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath("./configs")
		v.AddConfigPath(".")
	}

	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/leafsight.db")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)
	v.SetDefault("detection.base_url", "https://serverless.roboflow.com")
	v.SetDefault("detection.timeout", 30*time.Second)
	v.SetDefault("llm.base_url", "https://api.groq.com/openai/v1")
	v.SetDefault("llm.model", "llama3-70b-8192")
	v.SetDefault("llm.temperature", 0.3)
	v.SetDefault("llm.timeout", 60*time.Second)
	v.SetDefault("taxonomy.timeout", 30*time.Second)
	v.SetDefault("gallery.image_host", "plantvillage-production-new")
	v.SetDefault("gallery.timeout", 30*time.Second)
	v.SetDefault("storage.use_ssl", true)
	v.SetDefault("storage.bucket", "leafsight")
	v.SetDefault("storage.folder", "onion-leaf-detection")
	v.SetDefault("cache.ttl", 8*time.Hour)
	v.SetDefault("uploads.temp_dir", "./uploads")
	v.SetDefault("uploads.max_size_mb", 10)
	v.SetDefault("uploads.sweep_on_boot", true)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.url", "DATABASE_URL")
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("detection.model", "ROBOFLOW_MODEL")
	v.BindEnv("detection.version", "ROBOFLOW_VERSION")
	v.BindEnv("detection.api_key", "ROBOFLOW_API_KEY")
	v.BindEnv("llm.api_key", "GROQ_API_KEY")
	v.BindEnv("llm.base_url", "GROQ_API_URL")
	v.BindEnv("llm.model", "GROQ_MODEL")
	v.BindEnv("taxonomy.list_url", "DISEASE_LIST_URL")
	v.BindEnv("gallery.source_url", "DISEASE_INFO_URL")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

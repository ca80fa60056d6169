package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Storage   StorageConfig   `mapstructure:"storage"`
	Assets    AssetsConfig    `mapstructure:"assets"`
	Pipeline  PipelineConfig  `mapstructure:"pipeline"`
	Detection DetectionConfig `mapstructure:"detection"`
	Captions  CaptionsConfig  `mapstructure:"captions"`
	Fetch     FetchConfig     `mapstructure:"fetch"`
}

type ServerConfig struct {
	Port        int        `mapstructure:"port"`
	Mode        string     `mapstructure:"mode"`
	MaxUploadMB int64      `mapstructure:"max_upload_mb"`
	CORS        CORSConfig `mapstructure:"cors"`
}

type CORSConfig struct {
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	AllowAllOrigins bool     `mapstructure:"allow_all_origins"`
}

// MaxUploadBytes returns the upload limit in bytes.
func (s ServerConfig) MaxUploadBytes() int64 {
	return s.MaxUploadMB << 20
}

type DatabaseConfig struct {
	Driver          string        `mapstructure:"driver"` // sqlite or postgres
	Path            string        `mapstructure:"path"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	AutoMigrate     bool          `mapstructure:"auto_migrate"`
}

// DSN builds the driver specific connection string.
func (d *DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode)
	}
	return d.Path
}

// StorageConfig selects where generated memes are written.
// Type is one of local, s3, r2, s3compatible or minio.
type StorageConfig struct {
	Type      string `mapstructure:"type"`
	LocalDir  string `mapstructure:"local_dir"`
	Endpoint  string `mapstructure:"endpoint"`
	AccessKey string `mapstructure:"access_key"`
	SecretKey string `mapstructure:"secret_key"`
	UseSSL    bool   `mapstructure:"use_ssl"`
	Bucket    string `mapstructure:"bucket"`
	Region    string `mapstructure:"region"`
	PublicURL string `mapstructure:"public_url"`
}

type AssetsConfig struct {
	FontPath    string `mapstructure:"font_path"`
	OverlayDir  string `mapstructure:"overlay_dir"`
	CascadePath string `mapstructure:"cascade_path"`
}

type PipelineConfig struct {
	MaxSide        int     `mapstructure:"max_side"`
	JPEGQuality    int     `mapstructure:"jpeg_quality"`
	FooterText     string  `mapstructure:"footer_text"`
	OverlayOpacity float64 `mapstructure:"overlay_opacity"`
	OverlayScale   float64 `mapstructure:"overlay_scale"`
}

type DetectionConfig struct {
	Enabled          bool    `mapstructure:"enabled"`
	MinSize          int     `mapstructure:"min_size"`
	ScaleFactor      float64 `mapstructure:"scale_factor"`
	ShiftFactor      float64 `mapstructure:"shift_factor"`
	QualityThreshold float32 `mapstructure:"quality_threshold"`
	IoUThreshold     float64 `mapstructure:"iou_threshold"`
}

// CaptionsConfig overrides the built-in caption pools when non-empty.
type CaptionsConfig struct {
	Face   []string `mapstructure:"face"`
	Object []string `mapstructure:"object"`
}

type FetchConfig struct {
	Timeout  time.Duration `mapstructure:"timeout"`
	MaxBytes int64         `mapstructure:"max_bytes"`
	// AllowPrivateHosts lets from-url reach loopback and private networks.
	AllowPrivateHosts bool `mapstructure:"allow_private_hosts"`
}

func Load(configPath string) (*Config, error) {
	// Load .env file if exists
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

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Bind environment variables explicitly for sensitive data
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.endpoint", "STORAGE_ENDPOINT")
	v.BindEnv("storage.access_key", "STORAGE_ACCESS_KEY")
	v.BindEnv("storage.secret_key", "STORAGE_SECRET_KEY")
	v.BindEnv("storage.bucket", "STORAGE_BUCKET")
	v.BindEnv("storage.public_url", "STORAGE_PUBLIC_URL")
	v.BindEnv("assets.font_path", "MEME_FONT_PATH")
	v.BindEnv("assets.overlay_dir", "MEME_OVERLAY_DIR")
	v.BindEnv("assets.cascade_path", "MEME_CASCADE_PATH")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8000)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.max_upload_mb", 10)
	v.SetDefault("server.cors.allow_all_origins", true)
	v.SetDefault("server.cors.allowed_origins", []string{})

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", "./data/memes.db")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.dbname", "dirt2meme")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.max_open_conns", 10)
	v.SetDefault("database.conn_max_lifetime", time.Hour)
	v.SetDefault("database.auto_migrate", true)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_dir", "./generated")
	v.SetDefault("storage.bucket", "memes")
	v.SetDefault("storage.public_url", "/static")

	v.SetDefault("assets.font_path", "./assets/Anton-Regular.ttf")
	v.SetDefault("assets.overlay_dir", "./templates")
	v.SetDefault("assets.cascade_path", "./assets/facefinder")

	v.SetDefault("pipeline.max_side", 1280)
	v.SetDefault("pipeline.jpeg_quality", 92)
	v.SetDefault("pipeline.footer_text", "Dirt to Meme Magic")
	v.SetDefault("pipeline.overlay_opacity", 0.6)
	v.SetDefault("pipeline.overlay_scale", 0.22)

	v.SetDefault("detection.enabled", true)
	v.SetDefault("detection.min_size", 60)
	v.SetDefault("detection.scale_factor", 1.1)
	v.SetDefault("detection.shift_factor", 0.1)
	v.SetDefault("detection.quality_threshold", 5.0)
	v.SetDefault("detection.iou_threshold", 0.2)

	v.SetDefault("fetch.timeout", 15*time.Second)
	v.SetDefault("fetch.max_bytes", 10<<20)
	v.SetDefault("fetch.allow_private_hosts", false)
}

// Validate checks value ranges that would otherwise fail deep inside the pipeline.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.MaxUploadMB <= 0 {
		errs = append(errs, fmt.Errorf("server.max_upload_mb must be positive"))
	}
	if c.Pipeline.MaxSide <= 0 {
		errs = append(errs, fmt.Errorf("pipeline.max_side must be positive"))
	}
	if c.Pipeline.JPEGQuality < 1 || c.Pipeline.JPEGQuality > 100 {
		errs = append(errs, fmt.Errorf("pipeline.jpeg_quality must be within 1..100, got %d", c.Pipeline.JPEGQuality))
	}
	if c.Pipeline.OverlayOpacity < 0 || c.Pipeline.OverlayOpacity > 1 {
		errs = append(errs, fmt.Errorf("pipeline.overlay_opacity must be within 0..1"))
	}
	if c.Pipeline.OverlayScale <= 0 || c.Pipeline.OverlayScale > 1 {
		errs = append(errs, fmt.Errorf("pipeline.overlay_scale must be within (0, 1]"))
	}
	if c.Detection.Enabled && c.Detection.MinSize <= 0 {
		errs = append(errs, fmt.Errorf("detection.min_size must be positive"))
	}
	if c.Detection.Enabled && c.Detection.ScaleFactor <= 1 {
		errs = append(errs, fmt.Errorf("detection.scale_factor must be greater than 1"))
	}
	if c.Fetch.MaxBytes <= 0 {
		errs = append(errs, fmt.Errorf("fetch.max_bytes must be positive"))
	}
	switch c.Storage.Type {
	case "local", "s3", "r2", "s3compatible", "minio":
	default:
		errs = append(errs, fmt.Errorf("storage.type: unknown type %q", c.Storage.Type))
	}
	switch c.Database.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Errorf("database.driver: unknown driver %q", c.Database.Driver))
	}
	return errors.Join(errs...)
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/ivlev/daybyday/internal/pkg/errors"
)

const (
	ModeBatch    = "batch"
	ModeRealtime = "realtime"

	StreamMP4   = "mp4"
	StreamMJPEG = "mjpeg"
)

// Config is the application configuration. It is loaded once and passed
// down explicitly; no package reads the environment on its own.
type Config struct {
	Log      LogConfig      `yaml:"log"`
	Render   RenderConfig   `yaml:"render"`
	Source   SourceConfig   `yaml:"source"`
	Storage  StorageConfig  `yaml:"storage"`
	HTTP     HTTPConfig     `yaml:"http"`
	Redis    RedisConfig    `yaml:"redis"`
	Database DatabaseConfig `yaml:"database"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Source bool   `yaml:"source"`
}

type RenderConfig struct {
	Mode    string `yaml:"mode"`
	Workers int    `yaml:"workers"` // 0 = по числу ядер и свободной памяти
	MaxJobs int    `yaml:"max_jobs"`
	TempDir string `yaml:"temp_dir"`

	// Finished jobs stay queryable for JobRetention, at most KeepJobs of them.
	JobRetention time.Duration `yaml:"job_retention"`
	KeepJobs     int           `yaml:"keep_jobs"`

	FFmpeg       string `yaml:"ffmpeg"`
	Encoder      string `yaml:"encoder"` // "auto" = system.BestH264Encoder
	Quality      int    `yaml:"quality"`
	StillFormat  string `yaml:"still_format"`
	StreamFormat string `yaml:"stream_format"`

	Pace         bool `yaml:"pace"`
	BufferFrames int  `yaml:"buffer_frames"`
	YieldEvery   int  `yaml:"yield_every"`

	Scaler        string       `yaml:"scaler"`
	DetectRegions bool         `yaml:"detect_regions"`
	DocumentDPI   float64      `yaml:"document_dpi"`
	Anchor        AnchorConfig `yaml:"anchor"`
}

// AnchorConfig is the face-aware crop policy.
type AnchorConfig struct {
	TopBias    float64 `yaml:"top_bias"`
	PreferHint bool    `yaml:"prefer_hint"`
}

type SourceConfig struct {
	Root          string        `yaml:"root"`
	HTTPTimeout   time.Duration `yaml:"http_timeout"`
	// MaxMegapixels caps the decoded size of one photo or document page.
	MaxMegapixels int           `yaml:"max_megapixels"`
}

type StorageConfig struct {
	Provider  string       `yaml:"provider"`
	LocalRoot string       `yaml:"local_root"`
	Prefix    string       `yaml:"prefix"`
	GDrive    GDriveConfig `yaml:"gdrive"`
}

type GDriveConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RefreshToken string `yaml:"refresh_token"`
	FolderID     string `yaml:"folder_id"`
}

type HTTPConfig struct {
	Addr        string   `yaml:"addr"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type RedisConfig struct {
	Addr            string `yaml:"addr"`
	Queue           string `yaml:"queue"`
	ProgressChannel string `yaml:"progress_channel"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

func Default() Config {
	return Config{
		Log: LogConfig{Level: "info", Format: "json"},
		Render: RenderConfig{
			Mode:         ModeBatch,
			MaxJobs:      2,
			JobRetention: time.Hour,
			KeepJobs:     100,
			FFmpeg:       "ffmpeg",
			Encoder:      "auto",
			Quality:      23,
			StillFormat:  "jpg",
			StreamFormat: StreamMP4,
			Pace:         true,
			BufferFrames: FPS,
			YieldEvery:   10,
			Scaler:       "bilinear",
			DocumentDPI:  150,
			Anchor:       AnchorConfig{TopBias: 0.3, PreferHint: true},
		},
		Source: SourceConfig{HTTPTimeout: 30 * time.Second, MaxMegapixels: 100},
		Storage: StorageConfig{
			Provider:  "localfs",
			LocalRoot: "renders",
			Prefix:    "renders",
		},
		HTTP: HTTPConfig{Addr: ":8080"},
		Redis: RedisConfig{
			Queue:           "daybyday:renders",
			ProgressChannel: "daybyday:progress",
		},
	}
}

// Load reads defaults, then the YAML file at path (if any), then DAYBYDAY_* env overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "config.load", "config file cannot be read")
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, errors.WrapWithCode(err, errors.CodeConfiguration, "config.load", "config file is not valid YAML")
		}
	}

	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type envBinding struct {
	key string
	set func(c *Config, v string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, v string) error {
		*dst(c) = v
		return nil
	}
}

func integer(dst func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*dst(c) = n
		return nil
	}
}

func boolean(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*dst(c) = b
		return nil
	}
}

var envBindings = []envBinding{
	{"DAYBYDAY_LOG_LEVEL", str(func(c *Config) *string { return &c.Log.Level })},
	{"DAYBYDAY_LOG_FORMAT", str(func(c *Config) *string { return &c.Log.Format })},
	{"DAYBYDAY_RENDER_MODE", str(func(c *Config) *string { return &c.Render.Mode })},
	{"DAYBYDAY_RENDER_WORKERS", integer(func(c *Config) *int { return &c.Render.Workers })},
	{"DAYBYDAY_RENDER_MAX_JOBS", integer(func(c *Config) *int { return &c.Render.MaxJobs })},
	{"DAYBYDAY_RENDER_KEEP_JOBS", integer(func(c *Config) *int { return &c.Render.KeepJobs })},
	{"DAYBYDAY_RENDER_TEMP_DIR", str(func(c *Config) *string { return &c.Render.TempDir })},
	{"DAYBYDAY_FFMPEG", str(func(c *Config) *string { return &c.Render.FFmpeg })},
	{"DAYBYDAY_ENCODER", str(func(c *Config) *string { return &c.Render.Encoder })},
	{"DAYBYDAY_RENDER_PACE", boolean(func(c *Config) *bool { return &c.Render.Pace })},
	{"DAYBYDAY_DETECT_REGIONS", boolean(func(c *Config) *bool { return &c.Render.DetectRegions })},
	{"DAYBYDAY_SOURCE_ROOT", str(func(c *Config) *string { return &c.Source.Root })},
	{"DAYBYDAY_SOURCE_MAX_MEGAPIXELS", integer(func(c *Config) *int { return &c.Source.MaxMegapixels })},
	{"DAYBYDAY_STORAGE_PROVIDER", str(func(c *Config) *string { return &c.Storage.Provider })},
	{"DAYBYDAY_STORAGE_LOCAL_ROOT", str(func(c *Config) *string { return &c.Storage.LocalRoot })},
	{"DAYBYDAY_GDRIVE_CLIENT_ID", str(func(c *Config) *string { return &c.Storage.GDrive.ClientID })},
	{"DAYBYDAY_GDRIVE_CLIENT_SECRET", str(func(c *Config) *string { return &c.Storage.GDrive.ClientSecret })},
	{"DAYBYDAY_GDRIVE_REFRESH_TOKEN", str(func(c *Config) *string { return &c.Storage.GDrive.RefreshToken })},
	{"DAYBYDAY_GDRIVE_FOLDER_ID", str(func(c *Config) *string { return &c.Storage.GDrive.FolderID })},
	{"DAYBYDAY_HTTP_ADDR", str(func(c *Config) *string { return &c.HTTP.Addr })},
	{"DAYBYDAY_REDIS_ADDR", str(func(c *Config) *string { return &c.Redis.Addr })},
	{"DAYBYDAY_REDIS_QUEUE", str(func(c *Config) *string { return &c.Redis.Queue })},
	{"DAYBYDAY_DATABASE_URL", str(func(c *Config) *string { return &c.Database.URL })},
	{"DAYBYDAY_CORS_ORIGINS", func(c *Config, v string) error {
		c.HTTP.CORSOrigins = splitCSV(v)
		return nil
	}},
}

// ApplyEnv overrides fields from the environment. lookup is os.LookupEnv in
// production and a map in tests.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		v, ok := lookup(b.key)
		if !ok || strings.TrimSpace(v) == "" {
			continue
		}
		if err := b.set(c, strings.TrimSpace(v)); err != nil {
			return errors.WrapWithCode(err, errors.CodeConfiguration, "config.env", fmt.Sprintf("%s has an invalid value", b.key))
		}
	}
	return nil
}

// Validate checks values that would otherwise fail deep inside a render.
func (c *Config) Validate() error {
	switch c.Render.Mode {
	case ModeBatch, ModeRealtime:
	default:
		return errors.Configurationf("render.mode must be %q or %q, got %q", ModeBatch, ModeRealtime, c.Render.Mode)
	}
	switch c.Render.StreamFormat {
	case StreamMP4, StreamMJPEG:
	default:
		return errors.Configurationf("render.stream_format must be %q or %q, got %q", StreamMP4, StreamMJPEG, c.Render.StreamFormat)
	}
	switch c.Render.StillFormat {
	case "jpg", "png":
	default:
		return errors.Configurationf("render.still_format must be jpg or png, got %q", c.Render.StillFormat)
	}
	switch c.Render.Scaler {
	case "nearest", "bilinear", "catmullrom":
	default:
		return errors.Configurationf("render.scaler must be nearest, bilinear or catmullrom, got %q", c.Render.Scaler)
	}
	if c.Render.Workers < 0 || c.Render.MaxJobs < 1 {
		return errors.Configurationf("render.workers must be >= 0 and render.max_jobs >= 1")
	}
	if c.Render.KeepJobs < 1 || c.Render.JobRetention <= 0 {
		return errors.Configurationf("render.keep_jobs must be >= 1 and render.job_retention positive")
	}
	if c.Render.BufferFrames < 1 || c.Render.YieldEvery < 1 {
		return errors.Configurationf("render.buffer_frames and render.yield_every must be >= 1")
	}
	if c.Render.DocumentDPI <= 0 {
		return errors.Configurationf("render.document_dpi must be positive")
	}
	if c.Source.MaxMegapixels < 1 {
		return errors.Configurationf("source.max_megapixels must be >= 1")
	}
	if b := c.Render.Anchor.TopBias; b < 0 || b > 1 {
		return errors.Configurationf("render.anchor.top_bias must be within 0..1, got %v", b)
	}
	switch c.Storage.Provider {
	case "localfs":
		if c.Storage.LocalRoot == "" {
			return errors.Configurationf("storage.local_root is required for localfs")
		}
	case "gdrive":
		g := c.Storage.GDrive
		if g.ClientID == "" || g.ClientSecret == "" || g.RefreshToken == "" {
			return errors.Configurationf("storage.gdrive needs client_id, client_secret and refresh_token")
		}
	default:
		return errors.Configurationf("unknown storage provider %q", c.Storage.Provider)
	}
	return nil
}

func splitCSV(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

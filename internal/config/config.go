// Package config loads the accident service settings from a JSON file and
// the environment.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/kmmndr/accident_alert/internal/accident"
	"github.com/kmmndr/accident_alert/internal/logging"
	"github.com/kmmndr/accident_alert/internal/notify"
)

const maxFileSize = 1 * 1024 * 1024 // 1MB

// Encoder names.
const (
	EncoderOpenCV = "opencv"
	EncoderFFmpeg = "ffmpeg"
)

type Config struct {
	Listen          string   `json:"listen"`
	UploadDir       string   `json:"upload_dir"`
	SaveDir         string   `json:"save_dir"`
	DBPath          string   `json:"db_path"`
	MaxUploadMB     int64    `json:"max_upload_mb"`
	AnalysisTimeout string   `json:"analysis_timeout"` // duration string like "2m"
	HistoryLimit    int      `json:"history_limit"`
	CORSOrigins     []string `json:"cors_origins"`
	Encoder         string   `json:"encoder"`

	Pipeline  PipelineConfig  `json:"pipeline"`
	Detection DetectionConfig `json:"detection"`
	Mail      MailConfig      `json:"mail"`
	Kafka     KafkaConfig     `json:"kafka"`
	Log       LogConfig       `json:"log"`
}

type PipelineConfig struct {
	SpikeFactor      float64 `json:"spike_factor"`
	WindowSeconds    float64 `json:"window_seconds"`
	IoUThreshold     float64 `json:"iou_threshold"`
	MinVehicles      int     `json:"min_vehicles"`
	MinOverlap       float64 `json:"min_overlap"`
	DefaultFrameRate float64 `json:"default_frame_rate"`
}

type DetectionConfig struct {
	// ModelPath is a YOLOv8 ONNX export. Empty disables detection, and
	// every clip is then rejected for lack of vehicles.
	ModelPath     string  `json:"model_path"`
	Backend       string  `json:"backend"`
	InputSize     int     `json:"input_size"`
	ConfThreshold float32 `json:"conf_threshold"`
	NMSThreshold  float32 `json:"nms_threshold"`
}

type MailConfig struct {
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username"`
	Password string `json:"-"`
	From     string `json:"from"`
}

// Enabled reports whether credentials are present.
func (m MailConfig) Enabled() bool {
	return m.Username != "" && m.Password != ""
}

type KafkaConfig struct {
	BootstrapServers string `json:"bootstrap_servers"`
	Topic            string `json:"topic"`
}

func (k KafkaConfig) Enabled() bool {
	return k.BootstrapServers != ""
}

type LogConfig struct {
	Level      string `json:"level"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

func Default() *Config {
	p := accident.DefaultConfig()
	return &Config{
		Listen:          ":8000",
		UploadDir:       "saved_events",
		SaveDir:         p.ClipDir,
		DBPath:          "accident_history.db",
		MaxUploadMB:     512,
		AnalysisTimeout: "5m",
		HistoryLimit:    10,
		CORSOrigins:     []string{"*"},
		Encoder:         EncoderOpenCV,
		Pipeline: PipelineConfig{
			SpikeFactor:      p.SpikeFactor,
			WindowSeconds:    p.WindowSeconds,
			IoUThreshold:     p.IoUThreshold,
			MinVehicles:      p.MinVehicles,
			MinOverlap:       p.MinOverlap,
			DefaultFrameRate: p.DefaultFrameRate,
		},
		Detection: DetectionConfig{
			Backend:       "auto",
			InputSize:     640,
			ConfThreshold: 0.25,
			NMSThreshold:  0.45,
		},
		Mail: MailConfig{
			Host: notify.DefaultSMTPHost,
			Port: notify.DefaultSMTPPort,
		},
		Kafka: KafkaConfig{Topic: "accidents"},
		Log: LogConfig{
			Level:      "info",
			MaxSizeMB:  100,
			MaxBackups: 3,
			MaxAgeDays: 28,
		},
	}
}

// Load reads a JSON config file over the defaults, so partial files are
// fine. The file must have a .json extension and be under 1MB.
func Load(path string) (*Config, error) {
	cleanPath := filepath.Clean(path)
	if ext := filepath.Ext(cleanPath); ext != ".json" {
		return nil, fmt.Errorf("config file must have .json extension, got %q", ext)
	}

	fileInfo, err := os.Stat(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config file: %w", err)
	}
	if fileInfo.Size() > maxFileSize {
		return nil, fmt.Errorf("config file too large: %d bytes (max %d)", fileInfo.Size(), maxFileSize)
	}

	data, err := os.ReadFile(cleanPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadDotEnv loads variables from envFile into the process environment
// without overriding variables that are already set. A missing file is
// not an error.
func LoadDotEnv(envFile string) error {
	err := godotenv.Load(envFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}

// ApplyEnv overrides settings from the environment. lookup is usually
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	str("EMAIL_USER", &c.Mail.Username)
	str("EMAIL_PASS", &c.Mail.Password)
	str("SMTP_HOST", &c.Mail.Host)
	str("KAFKA_BOOTSTRAP_SERVERS", &c.Kafka.BootstrapServers)
	str("KAFKA_TOPIC", &c.Kafka.Topic)
	str("ACCIDENT_DB_PATH", &c.DBPath)
	str("ACCIDENT_SAVE_DIR", &c.SaveDir)
	str("ACCIDENT_MODEL_PATH", &c.Detection.ModelPath)

	if v, ok := lookup("SMTP_PORT"); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", v, err)
		}
		c.Mail.Port = port
	}
	return c.Validate()
}

func (c *Config) Validate() error {
	if _, err := time.ParseDuration(c.AnalysisTimeout); err != nil {
		return fmt.Errorf("invalid analysis_timeout '%s': %w", c.AnalysisTimeout, err)
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be positive, got %d", c.MaxUploadMB)
	}
	if c.HistoryLimit <= 0 {
		return fmt.Errorf("history_limit must be positive, got %d", c.HistoryLimit)
	}
	if c.SaveDir == "" || c.UploadDir == "" || c.DBPath == "" {
		return errors.New("save_dir, upload_dir and db_path are required")
	}
	switch c.Encoder {
	case EncoderOpenCV, EncoderFFmpeg:
	default:
		return fmt.Errorf("unknown encoder %q", c.Encoder)
	}
	switch strings.ToLower(c.Detection.Backend) {
	case "", "auto", "cpu", "cuda":
	default:
		return fmt.Errorf("unknown detector backend %q", c.Detection.Backend)
	}

	p := c.Pipeline
	if p.SpikeFactor <= 0 {
		return fmt.Errorf("spike_factor must be positive, got %f", p.SpikeFactor)
	}
	if p.WindowSeconds <= 0 {
		return fmt.Errorf("window_seconds must be positive, got %f", p.WindowSeconds)
	}
	if p.IoUThreshold <= 0 || p.IoUThreshold >= 1 {
		return fmt.Errorf("iou_threshold must be between 0 and 1, got %f", p.IoUThreshold)
	}
	if p.MinOverlap < 0 || p.MinOverlap > 1 {
		return fmt.Errorf("min_overlap must be between 0 and 1, got %f", p.MinOverlap)
	}
	if p.MinVehicles < 1 {
		return fmt.Errorf("min_vehicles must be at least 1, got %d", p.MinVehicles)
	}
	if p.DefaultFrameRate <= 0 {
		return fmt.Errorf("default_frame_rate must be positive, got %f", p.DefaultFrameRate)
	}
	if c.Mail.Port <= 0 || c.Mail.Port > 65535 {
		return fmt.Errorf("invalid mail port %d", c.Mail.Port)
	}
	if c.Kafka.Enabled() && strings.TrimSpace(c.Kafka.Topic) == "" {
		return errors.New("kafka topic is required when bootstrap servers are set")
	}
	return nil
}

// GetAnalysisTimeout returns the per upload analysis deadline.
func (c *Config) GetAnalysisTimeout() time.Duration {
	d, err := time.ParseDuration(c.AnalysisTimeout)
	if err != nil {
		return 5 * time.Minute
	}
	return d
}

func (c *Config) MaxUploadBytes() int64 {
	return c.MaxUploadMB << 20
}

// AccidentConfig returns the analysis tunables.
func (c *Config) AccidentConfig() accident.Config {
	return accident.Config{
		SpikeFactor:      c.Pipeline.SpikeFactor,
		WindowSeconds:    c.Pipeline.WindowSeconds,
		IoUThreshold:     c.Pipeline.IoUThreshold,
		MinVehicles:      c.Pipeline.MinVehicles,
		MinOverlap:       c.Pipeline.MinOverlap,
		DefaultFrameRate: c.Pipeline.DefaultFrameRate,
		ClipDir:          c.SaveDir,
	}
}

func (c *Config) MailerConfig() notify.MailConfig {
	return notify.MailConfig{
		Host:     c.Mail.Host,
		Port:     c.Mail.Port,
		Username: c.Mail.Username,
		Password: c.Mail.Password,
		From:     c.Mail.From,
	}
}

func (c *Config) KafkaPublisherConfig() notify.KafkaConfig {
	return notify.KafkaConfig{BootstrapServers: c.Kafka.BootstrapServers, Topic: c.Kafka.Topic}
}

func (c *Config) LoggingOptions(dev bool) logging.Options {
	return logging.Options{
		Level:      c.Log.Level,
		Dev:        dev,
		File:       c.Log.File,
		MaxSizeMB:  c.Log.MaxSizeMB,
		MaxBackups: c.Log.MaxBackups,
		MaxAgeDays: c.Log.MaxAgeDays,
	}
}

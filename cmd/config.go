package cmd

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/khanhnv2901/certscope/internal/grading"
	"github.com/khanhnv2901/certscope/internal/shared/constants"
	"github.com/khanhnv2901/certscope/internal/transparency"
)

const envPrefix = "CERTSCOPE"

// Config captures runtime configuration shared across commands.
type Config struct {
	Grading      GradingConfig
	Transparency TransparencyConfig
	Analysis     AnalysisConfig
	Server       ServerConfig
	Log          LogConfig
}

// GradingConfig groups the grading provider settings.
type GradingConfig struct {
	BaseURL        string
	PollInterval   time.Duration
	MaxAttempts    int
	RequestTimeout time.Duration
	RateLimit      int // outbound requests per second, 0 = unlimited
}

// TransparencyConfig groups the certificate transparency lookup settings.
type TransparencyConfig struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

type AnalysisConfig struct {
	Deadline time.Duration
}

// ServerConfig captures the REST API options.
type ServerConfig struct {
	Addr            string
	RateLimit       int
	RateBurst       int
	CORSOrigins     []string
	MaxJobs         int
	ShutdownTimeout time.Duration
}

// LogConfig selects the log level, encoder and optional rotated file sink.
type LogConfig struct {
	Level      string
	Format     string
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
}

// setConfigDefaults registers every key so AutomaticEnv can resolve it.
func setConfigDefaults(v *viper.Viper) {
	v.SetDefault("grading.base_url", grading.DefaultBaseURL)
	v.SetDefault("grading.poll_interval", constants.GradingPollInterval)
	v.SetDefault("grading.max_attempts", constants.GradingMaxAttempts)
	v.SetDefault("grading.request_timeout", constants.GradingRequestTimeout)
	v.SetDefault("grading.rate_limit", 1)

	v.SetDefault("transparency.base_url", transparency.DefaultBaseURL)
	v.SetDefault("transparency.timeout", constants.TransparencyTimeout)
	v.SetDefault("transparency.user_agent", constants.TransparencyUserAgent)

	v.SetDefault("analysis.deadline", constants.AnalysisDeadline)

	v.SetDefault("server.addr", ":9000")
	v.SetDefault("server.rate_limit", 10)
	v.SetDefault("server.rate_burst", 20)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.max_jobs", 1000)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 50)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age_days", 28)
}

// initViper points v at the config file and the CERTSCOPE_ environment.
// A missing default config file is not an error.
func initViper(v *viper.Viper, file string) error {
	setConfigDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath("$HOME")
		v.SetConfigName(".certscope")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if file == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	return nil
}

func loadConfig(v *viper.Viper) (Config, error) {
	cfg := Config{
		Grading: GradingConfig{
			BaseURL:        v.GetString("grading.base_url"),
			PollInterval:   v.GetDuration("grading.poll_interval"),
			MaxAttempts:    v.GetInt("grading.max_attempts"),
			RequestTimeout: v.GetDuration("grading.request_timeout"),
			RateLimit:      v.GetInt("grading.rate_limit"),
		},
		Transparency: TransparencyConfig{
			BaseURL:   v.GetString("transparency.base_url"),
			Timeout:   v.GetDuration("transparency.timeout"),
			UserAgent: v.GetString("transparency.user_agent"),
		},
		Analysis: AnalysisConfig{
			Deadline: v.GetDuration("analysis.deadline"),
		},
		Server: ServerConfig{
			Addr:            v.GetString("server.addr"),
			RateLimit:       v.GetInt("server.rate_limit"),
			RateBurst:       v.GetInt("server.rate_burst"),
			CORSOrigins:     v.GetStringSlice("server.cors_origins"),
			MaxJobs:         v.GetInt("server.max_jobs"),
			ShutdownTimeout: v.GetDuration("server.shutdown_timeout"),
		},
		Log: LogConfig{
			Level:      normalizeKeyword(v.GetString("log.level")),
			Format:     normalizeKeyword(v.GetString("log.format")),
			File:       v.GetString("log.file"),
			MaxSizeMB:  v.GetInt("log.max_size_mb"),
			MaxBackups: v.GetInt("log.max_backups"),
			MaxAgeDays: v.GetInt("log.max_age_days"),
		},
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	switch {
	case c.Grading.PollInterval <= 0:
		return fmt.Errorf("grading.poll_interval must be positive")
	case c.Grading.MaxAttempts <= 0:
		return fmt.Errorf("grading.max_attempts must be positive")
	case c.Grading.RateLimit < 0:
		return fmt.Errorf("grading.rate_limit must not be negative")
	case c.Transparency.Timeout <= 0:
		return fmt.Errorf("transparency.timeout must be positive")
	case c.Analysis.Deadline <= 0:
		return fmt.Errorf("analysis.deadline must be positive")
	case c.Server.MaxJobs <= 0:
		return fmt.Errorf("server.max_jobs must be positive")
	}
	switch c.Log.Format {
	case "json", "console":
	default:
		return fmt.Errorf("log.format must be json or console, got %q", c.Log.Format)
	}
	return nil
}

// applyServeFlags lets explicitly set flags win over config file values.
func applyServeFlags(flags *pflag.FlagSet, cfg *ServerConfig) {
	applyStringDefault(flags, "addr", &cfg.Addr)
	applyIntDefault(flags, "rate-limit", &cfg.RateLimit)
	applyIntDefault(flags, "rate-burst", &cfg.RateBurst)
	applyIntDefault(flags, "max-jobs", &cfg.MaxJobs)
	applyDurationDefault(flags, "shutdown-timeout", &cfg.ShutdownTimeout)
	if flag := flags.Lookup("cors-origins"); flag != nil && flag.Changed {
		if origins, err := flags.GetStringSlice("cors-origins"); err == nil {
			cfg.CORSOrigins = origins
		}
	}
}

// applyLogFlags overrides the log settings with explicitly set persistent flags.
func applyLogFlags(flags *pflag.FlagSet, cfg *LogConfig) {
	applyStringDefault(flags, "log-level", &cfg.Level)
	applyStringDefault(flags, "log-format", &cfg.Format)
	cfg.Level = normalizeKeyword(cfg.Level)
	cfg.Format = normalizeKeyword(cfg.Format)
}

func normalizeKeyword(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func applyIntDefault(flags *pflag.FlagSet, name string, target *int) {
	if flags == nil || target == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	if v, err := flags.GetInt(name); err == nil {
		*target = v
	}
}

func applyStringDefault(flags *pflag.FlagSet, name string, target *string) {
	if flags == nil || target == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	*target = flag.Value.String()
}

func applyDurationDefault(flags *pflag.FlagSet, name string, target *time.Duration) {
	if flags == nil || target == nil {
		return
	}
	flag := flags.Lookup(name)
	if flag == nil || !flag.Changed {
		return
	}
	if v, err := flags.GetDuration(name); err == nil {
		*target = v
	}
}

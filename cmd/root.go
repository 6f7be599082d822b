package cmd

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Ashfaaq98/insights-console/internal/api"
	"github.com/Ashfaaq98/insights-console/internal/bus"
	"github.com/Ashfaaq98/insights-console/internal/chat"
	"github.com/Ashfaaq98/insights-console/internal/dashboard"
	"github.com/Ashfaaq98/insights-console/internal/notify"
	"github.com/Ashfaaq98/insights-console/internal/store"
)

var (
	cfgFile   string
	apiURL    string
	statePath string
	redisURL  string
	logLevel  string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "insights-console",
	Short: "Terminal client for the economic insights report backend",
	Long: `Insights Console is a terminal-first client for an economic insights backend.
It uploads PDF reports, browses the AI-derived report collection and lets you
chat with individual reports.

Features:
- Dashboard TUI with storyboard, key actors, highlights timeline and report views
- Per-report chat with quick prompts and read-aloud
- Drop folder uploads alongside the interactive file picker
- Redis Streams invalidation so several consoles stay in sync
- Scriptable CLI commands for every backend operation`,
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.insights-console.yaml)")
	rootCmd.PersistentFlags().StringVar(&apiURL, "api", "http://localhost:8000", "Backend base URL")
	rootCmd.PersistentFlags().StringVar(&statePath, "state", "./data/insights-console.db", "Local state database path")
	rootCmd.PersistentFlags().StringVar(&redisURL, "redis", "", "Redis URL for cross-console invalidation (empty disables)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	// Bind flags to viper
	viper.BindPFlag("api.url", rootCmd.PersistentFlags().Lookup("api"))
	viper.BindPFlag("state.path", rootCmd.PersistentFlags().Lookup("state"))
	viper.BindPFlag("redis.url", rootCmd.PersistentFlags().Lookup("redis"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))
}

// initConfig reads in .env, the config file and ENV variables if set.
func initConfig() {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".insights-console" (without extension).
		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".insights-console")
	}

	// INSIGHTS_API_URL, INSIGHTS_REDIS_URL, ...
	viper.SetEnvPrefix("insights")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}

	// Set defaults
	viper.SetDefault("api.url", "http://localhost:8000")
	viper.SetDefault("api.timeout", 60*time.Second)
	viper.SetDefault("api.rps", 10)
	viper.SetDefault("api.burst", 20)
	viper.SetDefault("api.retries", 2)
	viper.SetDefault("state.path", "./data/insights-console.db")
	viper.SetDefault("redis.url", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("upload.drop_dir", "data/dropzone")
	viper.SetDefault("tts.command", "")
}

// GetConfig returns the current configuration values
func GetConfig() Config {
	return Config{
		API: APIConfig{
			URL:     viper.GetString("api.url"),
			Timeout: viper.GetDuration("api.timeout"),
			RPS:     viper.GetFloat64("api.rps"),
			Burst:   viper.GetInt("api.burst"),
			Retries: viper.GetInt("api.retries"),
		},
		State: StateConfig{
			Path: viper.GetString("state.path"),
		},
		Redis: RedisConfig{
			URL: viper.GetString("redis.url"),
		},
		Log: LogConfig{
			Level: viper.GetString("log.level"),
		},
		Upload: UploadConfig{
			DropDir: viper.GetString("upload.drop_dir"),
		},
		TTS: TTSConfig{
			Command: viper.GetString("tts.command"),
		},
	}
}

// Config represents the application configuration
type Config struct {
	API    APIConfig    `mapstructure:"api"`
	State  StateConfig  `mapstructure:"state"`
	Redis  RedisConfig  `mapstructure:"redis"`
	Log    LogConfig    `mapstructure:"log"`
	Upload UploadConfig `mapstructure:"upload"`
	TTS    TTSConfig    `mapstructure:"tts"`
}

type APIConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`
	RPS     float64       `mapstructure:"rps"`
	Burst   int           `mapstructure:"burst"`
	Retries int           `mapstructure:"retries"`
}

type StateConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	URL string `mapstructure:"url"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type UploadConfig struct {
	DropDir string `mapstructure:"drop_dir"`
}

type TTSConfig struct {
	Command string `mapstructure:"command"`
}

// newLogger builds the root logger. Unknown levels fall back to info.
func newLogger(level string, out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		lvl = logrus.InfoLevel
	}
	l.SetLevel(lvl)
	l.SetOutput(out)
	return l
}

func newClient(cfg Config, logger logrus.FieldLogger) (*api.Client, error) {
	timeout := cfg.API.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return api.New(cfg.API.URL,
		api.WithHTTPClient(&http.Client{Timeout: timeout}),
		api.WithRateLimit(cfg.API.RPS, cfg.API.Burst),
		api.WithRetry(cfg.API.Retries, 0),
		api.WithLogger(logger),
	)
}

// session bundles everything a command needs to talk to the backend. Close
// releases the state store and the bus.
type session struct {
	cfg     Config
	logger  *logrus.Logger
	client  *api.Client
	state   *store.Store
	bus     bus.Bus
	emitter *notify.Emitter
	app     *dashboard.App
}

// openSession wires the dashboard for CLI use: logs and notifications go to
// stderr.
func openSession(withBus bool) (*session, error) {
	cfg := GetConfig()
	logger := newLogger(cfg.Log.Level, os.Stderr)
	return buildSession(cfg, logger, withBus)
}

func buildSession(cfg Config, logger *logrus.Logger, withBus bool) (*session, error) {
	client, err := newClient(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create API client: %w", err)
	}

	st, err := store.NewStore(resolvePathRelativeToBase(getWorkingDir(), cfg.State.Path))
	if err != nil {
		return nil, fmt.Errorf("failed to open local state: %w", err)
	}

	var b bus.Bus
	if withBus {
		b = bus.NewBus(cfg.Redis.URL, logger)
	} else {
		b = bus.NewNullBus(logger)
	}

	emitter := notify.NewEmitter(0, logger)
	app, err := dashboard.New(dashboard.Options{
		Backend:  client,
		Durable:  st,
		Activity: st,
		Bus:      b,
		Notifier: emitter,
		Speaker:  chat.NewSpeaker(cfg.TTS.Command, emitter, logger),
		Logger:   logger,
	})
	if err != nil {
		b.Close()
		st.Close()
		return nil, err
	}
	return &session{cfg: cfg, logger: logger, client: client, state: st, bus: b, emitter: emitter, app: app}, nil
}

// printNotifications mirrors notifications to w, one per line.
func (s *session) printNotifications(w io.Writer) {
	s.emitter.Subscribe(func(n notify.Notification) {
		fmt.Fprintf(w, "[%s] %s\n", n.Severity, n.Message)
	})
}

func (s *session) Close() {
	if err := s.bus.Close(); err != nil {
		s.logger.WithError(err).Debug("Bus close failed")
	}
	if err := s.state.Close(); err != nil {
		s.logger.WithError(err).Debug("State close failed")
	}
}

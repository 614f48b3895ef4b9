package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"

	"github.com/xenking/masterpol/internal/sweeper"
)

// DefaultDatabaseURL is the SQLite file used when no database is configured.
const DefaultDatabaseURL = "ledger.db"

// Config holds the application configuration, loadable from environment
// variables (LEDGER_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL string `usage:"postgres:// URL or SQLite DSN (LEDGER_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Lifecycle   LifecycleConfig
	Sweeper     SweeperConfig
	Graceful    GracefulConfig
}

// LifecycleConfig selects the order transition policy.
type LifecycleConfig struct {
	Strict bool `default:"false" usage:"Only allow step-by-step order status transitions"`
}

// SweeperConfig controls the background expiration of unpaid orders.
type SweeperConfig struct {
	Enabled     bool          `default:"true" usage:"Run the expiration sweeper in the server"`
	Interval    time.Duration `default:"10m" usage:"Time between sweeps"`
	GraceWindow time.Duration `default:"72h" usage:"Age after which unpaid created orders are cancelled"`
	Concurrency int           `default:"4" usage:"Orders cancelled in parallel"`
	Timeout     time.Duration `default:"1m" usage:"Upper bound for a single sweep"`
}

// Sweeper returns the sweeper settings.
func (c SweeperConfig) Sweeper() sweeper.Config {
	return sweeper.Config{
		Interval:    c.Interval,
		GraceWindow: c.GraceWindow,
		Concurrency: c.Concurrency,
		Timeout:     c.Timeout,
	}
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config
// files and the given command-line arguments, then applies platform
// defaults.
func LoadConfig(args []string) (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "LEDGER",
		Args:      args,
		Files:     []string{"config.yaml", "/etc/ledger/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if cfg.Sweeper.Interval <= 0 {
		return nil, errors.Errorf("sweeper interval must be positive, got %s", cfg.Sweeper.Interval)
	}
	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided DATABASE_URL and PORT onto the
// LEDGER_ configuration and falls back to a local SQLite file.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		c.DatabaseURL = os.Getenv("DATABASE_URL")
	}
	if c.DatabaseURL == "" {
		c.DatabaseURL = DefaultDatabaseURL
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}

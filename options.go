package wire

import (
	"crypto/tls"
	"log/slog"
	"time"
)

// OptionFn follows the functional-options pattern used throughout this
// runtime to configure a Config before Connect dials.
type OptionFn func(*Config)

// Config holds everything a connection attempt needs. ParseDSN parses it
// from a connection string; individual fields can be overridden with the
// OptionFn helpers below before calling Connect.
type Config struct {
	Host     string
	Port     int
	Unix     string // unix socket path; if set, takes precedence over Host/Port
	Database string
	User     string
	Password string

	SSLMode        SSLMode
	SSLCertFile    string
	SSLKeyFile     string
	SSLRootCADFile string
	TLSConfig      *tls.Config

	ConnectTimeout time.Duration
	ServerEncoding string

	// Settings are forwarded verbatim as StartupMessage parameters, e.g.
	// application_name, search_path, TimeZone.
	Settings map[string]string

	Logger  *slog.Logger
	Hooks   NoticeHooks
	Metrics *Metrics
}

// SSLMode mirrors libpq's sslmode connection parameter.
type SSLMode string

const (
	SSLDisable SSLMode = "disable"
	SSLAllow   SSLMode = "allow"
	SSLPrefer  SSLMode = "prefer"
	SSLRequire SSLMode = "require"
)

// WithPassword overrides the password parsed from (or absent in) the DSN.
func WithPassword(password string) OptionFn {
	return func(cfg *Config) { cfg.Password = password }
}

// WithLogger attaches a structured logger; every component threads it
// through the way the teacher's server threads *slog.Logger.
func WithLogger(logger *slog.Logger) OptionFn {
	return func(cfg *Config) { cfg.Logger = logger }
}

// WithTLSConfig supplies a preconstructed tls.Config for the TLS upgrade.
// Without it, a tls.Config with only ServerName set to Host is used; the
// SSLCertFile/SSLKeyFile/SSLRootCADFile settings are not read by the
// handshake.
func WithTLSConfig(tlsConfig *tls.Config) OptionFn {
	return func(cfg *Config) { cfg.TLSConfig = tlsConfig }
}

// WithConnectTimeout bounds the time spent dialing and completing startup.
func WithConnectTimeout(d time.Duration) OptionFn {
	return func(cfg *Config) { cfg.ConnectTimeout = d }
}

// WithSetting adds or overrides a single startup parameter (e.g.
// application_name, search_path).
func WithSetting(key, value string) OptionFn {
	return func(cfg *Config) {
		if cfg.Settings == nil {
			cfg.Settings = make(map[string]string, 4)
		}
		cfg.Settings[key] = value
	}
}

// WithNoticeHook appends a callback to the connection-level link of the
// notice hook chain (§9: output -> statement -> connection -> driver ->
// process). Returning true from hook stops further propagation.
func WithNoticeHook(hook NoticeHook) OptionFn {
	return func(cfg *Config) { cfg.Hooks.Connection = append(cfg.Hooks.Connection, hook) }
}

// WithMetrics attaches a Metrics instance; if omitted, no copy metrics are
// recorded.
func WithMetrics(m *Metrics) OptionFn {
	return func(cfg *Config) { cfg.Metrics = m }
}

func defaultConfig() *Config {
	return &Config{
		Port:           5432,
		SSLMode:        SSLPrefer,
		ConnectTimeout: 30 * time.Second,
		Logger:         slog.Default(),
		Settings:       make(map[string]string, 4),
	}
}

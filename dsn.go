package wire

import (
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// ParseDSN parses a `pq://[user[:password]@]host[:port]/database?k=v`
// connection string into a Config. Recognized driver settings (sslmode,
// sslcrtfile, sslkeyfile, sslrootcrtfile, connect_timeout, server_encoding,
// unix) are consumed into the matching Config field; every other query
// parameter is forwarded verbatim as a StartupMessage setting. There is no
// third-party URI parser in the example pack suited to this grammar, so
// this uses net/url directly (see DESIGN.md).
func ParseDSN(dsn string) (*Config, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}

	if u.Scheme != "pq" && u.Scheme != "postgres" && u.Scheme != "postgresql" {
		return nil, fmt.Errorf("parse dsn: unsupported scheme %q", u.Scheme)
	}

	cfg := defaultConfig()
	cfg.Host = u.Hostname()

	if port := u.Port(); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return nil, fmt.Errorf("parse dsn: invalid port %q: %w", port, err)
		}
		cfg.Port = p
	}

	if u.User != nil {
		cfg.User = u.User.Username()
		if pw, ok := u.User.Password(); ok {
			cfg.Password = pw
		}
	}

	if len(u.Path) > 1 {
		cfg.Database = u.Path[1:]
	}

	query := u.Query()
	for key, values := range query {
		if len(values) == 0 {
			continue
		}
		value := values[0]

		switch key {
		case "sslmode":
			cfg.SSLMode = SSLMode(value)
		case "sslcrtfile":
			cfg.SSLCertFile = value
		case "sslkeyfile":
			cfg.SSLKeyFile = value
		case "sslrootcrtfile":
			cfg.SSLRootCADFile = value
		case "unix":
			cfg.Unix = value
		case "server_encoding":
			cfg.ServerEncoding = value
		case "connect_timeout":
			seconds, err := strconv.Atoi(value)
			if err != nil {
				return nil, fmt.Errorf("parse dsn: invalid connect_timeout %q: %w", value, err)
			}
			cfg.ConnectTimeout = time.Duration(seconds) * time.Second
		default:
			cfg.Settings[key] = value
		}
	}

	return cfg, nil
}

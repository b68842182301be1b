package wire

import (
	"context"
	"crypto/tls"
	"net"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// negotiateTLS performs the optional SSLRequest exchange (§4.6) ahead of
// the startup message. If cfg.SSLMode is SSLDisable, the connection is
// returned unchanged.
func negotiateTLS(conn net.Conn, cfg *Config) (net.Conn, error) {
	if cfg.SSLMode == SSLDisable {
		return conn, nil
	}

	writer := buffer.NewWriter(cfg.Logger, conn)
	req := protocol.SSLRequest{}
	if err := req.Encode(writer); err != nil {
		return conn, pgerror.Transport(err)
	}

	reply := make([]byte, 1)
	if _, err := conn.Read(reply); err != nil {
		return conn, pgerror.Transport(err)
	}

	switch reply[0] {
	case 'S':
		tlsConfig := cfg.TLSConfig
		if tlsConfig == nil {
			tlsConfig = &tls.Config{ServerName: cfg.Host}
		}
		return tls.Client(conn, tlsConfig), nil

	case 'N':
		if cfg.SSLMode == SSLRequire {
			return conn, pgerror.Transport(errSSLRequired)
		}
		return conn, nil

	default:
		return conn, pgerror.Protocolf("unexpected SSLRequest reply byte %q", reply[0])
	}
}

var errSSLRequired = errUnsupportedSSL{}

type errUnsupportedSSL struct{}

func (errUnsupportedSSL) Error() string {
	return "server does not support SSL, but sslmode=require"
}

// startup sends the StartupMessage and drives the connection through
// authentication up to the first ReadyForQuery, absorbing BackendKeyData
// and ParameterStatus along the way (§4.6).
func (c *Conn) startup(ctx context.Context) error {
	params := map[string]string{
		"user":     c.config.User,
		"database": c.config.Database,
	}
	for k, v := range c.config.Settings {
		params[k] = v
	}

	msg := protocol.Startup{Version: types.Version30, Parameters: params}
	if err := msg.Encode(c.writer); err != nil {
		return pgerror.Transport(err)
	}

	if err := c.authenticate(c.reader, c.writer); err != nil {
		return err
	}

	for {
		kind, err := c.next()
		if err != nil {
			return err
		}

		switch kind {
		case types.ServerBackendKeyData:
			data, err := protocol.DecodeBackendKeyData(c.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			c.backendPID = data.ProcessID
			c.backendSecret = data.SecretKey

		case types.ServerReady:
			ready, err := protocol.DecodeReadyForQuery(c.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			c.txStatus = ready.Status
			return nil

		case types.ServerErrorResponse:
			fields, err := protocol.DecodeErrorResponse(c.reader)
			if err != nil {
				return pgerror.Protocol(err)
			}
			return decodeServerError(fields)

		default:
			return pgerror.Protocolf("unexpected message %s during startup", kind)
		}
	}
}

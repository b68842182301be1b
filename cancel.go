package wire

import (
	"context"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
)

// Cancel asks the server to abort whatever this connection's backend is
// currently doing, by opening a brand new connection and sending a
// CancelRequest over it (§4.6/§5: cancellation never reuses the original
// socket, since that socket is busy with the command being cancelled).
func (c *Conn) Cancel(ctx context.Context) error {
	netConn, err := dial(ctx, c.config)
	if err != nil {
		return pgerror.Transport(err)
	}
	defer netConn.Close()

	netConn, err = negotiateTLS(netConn, c.config)
	if err != nil {
		return err
	}

	writer := buffer.NewWriter(c.logger, netConn)
	msg := protocol.CancelRequest{ProcessID: c.backendPID, SecretKey: c.backendSecret}
	if err := msg.Encode(writer); err != nil {
		return pgerror.Transport(err)
	}

	return nil
}

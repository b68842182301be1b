package wire

import (
	"fmt"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
)

// authenticate drives the authentication phase of startup (§4.6): read
// AuthenticationRequest subtypes and reply until AuthOk, or fail fatally on
// an unsupported mechanism. Mirrors the teacher's handleAuth dispatch, but
// the client answers challenges instead of issuing them.
func (c *Conn) authenticate(reader *buffer.Reader, writer *buffer.Writer) error {
	for {
		kind, _, err := reader.ReadTypedMsg()
		if err != nil {
			return pgerror.Transport(err)
		}

		if kind != types.ServerAuth {
			return pgerror.Protocolf("expected AuthenticationRequest, got %s", kind)
		}

		auth, err := protocol.DecodeAuthentication(reader)
		if err != nil {
			return pgerror.Protocol(err)
		}

		switch auth.Type {
		case types.AuthOk:
			return nil

		case types.AuthCleartextPassword:
			if err := c.sendPassword(writer, c.config.Password); err != nil {
				return err
			}

		case types.AuthMD5Password:
			hashed := hashMD5Password(c.config.User, c.config.Password, auth.Salt)
			if err := c.sendPassword(writer, hashed); err != nil {
				return err
			}

		case types.AuthSASL:
			if err := c.authenticateSASL(reader, writer, auth.Mechanisms); err != nil {
				return err
			}

		default:
			return pgerror.Auth(fmt.Errorf("unsupported authentication mechanism %d", auth.Type))
		}
	}
}

func (c *Conn) sendPassword(writer *buffer.Writer, password string) error {
	msg := protocol.PasswordMessage{Password: password}
	if err := msg.Encode(writer); err != nil {
		return pgerror.Transport(err)
	}
	return nil
}

// hashMD5Password implements Postgres's MD5 challenge-response: the
// password is wrapped twice, first salted with the username, then salted
// with the server's random 4-byte salt, each time rendered as a hex digest;
// only the final digest is prefixed with "md5".
func hashMD5Password(user, password string, salt [4]byte) string {
	return "md5" + md5Hex(md5Hex(password+user)+string(salt[:]))
}

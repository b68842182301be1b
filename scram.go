package wire

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"

	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/types"
	"golang.org/x/crypto/pbkdf2"
)

const scramMechanism = "SCRAM-SHA-256"

// authenticateSASL drives the SCRAM-SHA-256 exchange named in §4.6
// (AuthSASL/AuthSASLContinue/AuthSASLFinal). Only SCRAM-SHA-256 is
// implemented; any other offered mechanism is rejected as unsupported.
func (c *Conn) authenticateSASL(reader *buffer.Reader, writer *buffer.Writer, mechanisms []string) error {
	chosen := ""
	for _, m := range mechanisms {
		if m == scramMechanism {
			chosen = m
			break
		}
	}
	if chosen == "" {
		return pgerror.Auth(fmt.Errorf("server offered no supported SASL mechanism (got %v)", mechanisms))
	}

	clientNonce, err := randomNonce()
	if err != nil {
		return pgerror.Auth(err)
	}

	clientFirstBare := "n=,r=" + clientNonce
	initial := protocol.SASLInitialResponse{Mechanism: chosen, Data: []byte("n,," + clientFirstBare)}
	if err := initial.Encode(writer); err != nil {
		return pgerror.Transport(err)
	}

	kind, _, err := reader.ReadTypedMsg()
	if err != nil {
		return pgerror.Transport(err)
	}
	if kind != types.ServerAuth {
		return pgerror.Protocolf("expected AuthenticationSASLContinue, got %s", kind)
	}

	cont, err := protocol.DecodeAuthentication(reader)
	if err != nil {
		return pgerror.Protocol(err)
	}
	if cont.Type != types.AuthSASLContinue {
		return pgerror.Protocolf("expected AuthenticationSASLContinue, got auth subtype %d", cont.Type)
	}

	serverFirst := string(cont.Data)
	serverNonce, salt, iterations, err := parseServerFirstMessage(serverFirst)
	if err != nil {
		return pgerror.Auth(err)
	}
	if !strings.HasPrefix(serverNonce, clientNonce) {
		return pgerror.Auth(fmt.Errorf("server nonce does not extend client nonce"))
	}

	saltedPassword := pbkdf2.Key([]byte(c.config.Password), salt, iterations, sha256.Size, sha256.New)
	clientKey := hmacSHA256(saltedPassword, []byte("Client Key"))
	storedKey := sha256.Sum256(clientKey)

	channelBinding := base64.StdEncoding.EncodeToString([]byte("n,,"))
	clientFinalWithoutProof := "c=" + channelBinding + ",r=" + serverNonce
	authMessage := clientFirstBare + "," + serverFirst + "," + clientFinalWithoutProof

	clientSignature := hmacSHA256(storedKey[:], []byte(authMessage))
	clientProof := xorBytes(clientKey, clientSignature)

	final := clientFinalWithoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	finalMsg := protocol.SASLResponse{Data: []byte(final)}
	if err := finalMsg.Encode(writer); err != nil {
		return pgerror.Transport(err)
	}

	kind, _, err = reader.ReadTypedMsg()
	if err != nil {
		return pgerror.Transport(err)
	}
	if kind != types.ServerAuth {
		return pgerror.Protocolf("expected AuthenticationSASLFinal, got %s", kind)
	}

	finalResp, err := protocol.DecodeAuthentication(reader)
	if err != nil {
		return pgerror.Protocol(err)
	}
	if finalResp.Type != types.AuthSASLFinal {
		return pgerror.Protocolf("expected AuthenticationSASLFinal, got auth subtype %d", finalResp.Type)
	}

	serverKey := hmacSHA256(saltedPassword, []byte("Server Key"))
	expectedSignature := hmacSHA256(serverKey, []byte(authMessage))
	gotSignature, err := parseServerFinalMessage(string(finalResp.Data))
	if err != nil {
		return pgerror.Auth(err)
	}
	if !hmac.Equal(expectedSignature, gotSignature) {
		return pgerror.Auth(fmt.Errorf("server signature verification failed"))
	}

	return nil
}

func randomNonce() (string, error) {
	buf := make([]byte, 18)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawStdEncoding.EncodeToString(buf), nil
}

func hmacSHA256(key, data []byte) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write(data)
	return mac.Sum(nil)
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i]
	}
	return out
}

// parseServerFirstMessage parses "r=<nonce>,s=<salt-b64>,i=<iterations>".
func parseServerFirstMessage(s string) (nonce string, salt []byte, iterations int, err error) {
	for _, part := range strings.Split(s, ",") {
		if len(part) < 2 || part[1] != '=' {
			continue
		}
		switch part[0] {
		case 'r':
			nonce = part[2:]
		case 's':
			salt, err = base64.StdEncoding.DecodeString(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("scram: invalid salt: %w", err)
			}
		case 'i':
			iterations, err = strconv.Atoi(part[2:])
			if err != nil {
				return "", nil, 0, fmt.Errorf("scram: invalid iteration count: %w", err)
			}
		}
	}

	if nonce == "" || salt == nil || iterations == 0 {
		return "", nil, 0, fmt.Errorf("scram: malformed server-first-message %q", s)
	}

	return nonce, salt, iterations, nil
}

// parseServerFinalMessage parses "v=<signature-b64>".
func parseServerFinalMessage(s string) ([]byte, error) {
	for _, part := range strings.Split(s, ",") {
		if strings.HasPrefix(part, "v=") {
			return base64.StdEncoding.DecodeString(part[2:])
		}
	}
	return nil, fmt.Errorf("scram: malformed server-final-message %q", s)
}

package types

// TxnStatus indicates the current backend transaction status, carried on
// every ReadyForQuery message. Possible values are 'I' if idle (not in a
// transaction block); 'T' if in a transaction block; or 'E' if in a failed
// transaction block (queries will be rejected until the block ends).
type TxnStatus byte

const (
	TxnIdle    TxnStatus = 'I'
	TxnInBlock TxnStatus = 'T'
	TxnFailed  TxnStatus = 'E'
)

func (s TxnStatus) String() string {
	switch s {
	case TxnIdle:
		return "idle"
	case TxnInBlock:
		return "in-block"
	case TxnFailed:
		return "failed-block"
	default:
		return "unknown"
	}
}

// AuthType represents the authentication subtype carried inside an
// AuthenticationRequest message.
type AuthType int32

const (
	AuthOk                AuthType = 0
	AuthKerberosV5        AuthType = 2
	AuthCleartextPassword AuthType = 3
	AuthMD5Password       AuthType = 5
	AuthSCMCredential     AuthType = 6
	AuthGSS               AuthType = 7
	AuthGSSContinue       AuthType = 8
	AuthSSPI              AuthType = 9
	AuthSASL              AuthType = 10
	AuthSASLContinue      AuthType = 11
	AuthSASLFinal         AuthType = 12
)

// CopyFormat identifies the overall format of a COPY sub-protocol stream, as
// carried in CopyInResponse/CopyOutResponse/CopyBothResponse.
type CopyFormat byte

const (
	CopyFormatText   CopyFormat = 0
	CopyFormatBinary CopyFormat = 1
)

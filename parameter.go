package wire

import "github.com/riftwire/pgclient/pkg/types"

// NewParameter wraps an already-encoded wire value with the format it was
// encoded in, ready to be placed into a Bind message.
func NewParameter(format types.FormatCode, value []byte) Parameter {
	return Parameter{format: format, value: value}
}

// Parameter is one already-marshaled Bind parameter.
type Parameter struct {
	format types.FormatCode
	value  []byte
}

func (p Parameter) Format() types.FormatCode {
	return p.format
}

func (p Parameter) Value() []byte {
	return p.value
}

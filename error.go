package wire

import (
	"strconv"

	"github.com/riftwire/pgclient/codes"
	pgerror "github.com/riftwire/pgclient/errors"
	"github.com/riftwire/pgclient/pkg/buffer"
	"github.com/riftwire/pgclient/pkg/protocol"
)

// decodeServerError converts a decoded ErrorResponse/NoticeResponse field
// set into the normalized error shape the rest of the runtime reasons
// about, recovering the full decoration chain (code, severity, detail,
// hint, constraint, source) via errors.Server.
// https://www.postgresql.org/docs/current/static/protocol-error-fields.html
func decodeServerError(msg protocol.FieldedMessage) error {
	fields := pgerror.Error{
		Code:     codes.Uncategorized,
		Severity: pgerror.LevelError,
	}

	if v, ok := msg.Fields[buffer.ServerErrFieldSQLState]; ok {
		fields.Code = codes.Code(v)
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldMsgPrimary]; ok {
		fields.Message = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldSeverity]; ok {
		fields.Severity = pgerror.Severity(v)
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldDetail]; ok {
		fields.Detail = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldHint]; ok {
		fields.Hint = v
	}
	if v, ok := msg.Fields[buffer.ServerErrFieldConstraintName]; ok {
		fields.ConstraintName = v
	}

	file, hasFile := msg.Fields[buffer.ServerErrFieldSrcFile]
	fn, hasFn := msg.Fields[buffer.ServerErrFieldSrcFunction]
	if line, hasLine := msg.Fields[buffer.ServerErrFieldSrcLine]; hasFile || hasFn || hasLine {
		n, _ := strconv.ParseInt(line, 10, 32)
		fields.Source = &pgerror.Source{File: file, Line: int32(n), Function: fn}
	}

	return pgerror.Server(fields)
}

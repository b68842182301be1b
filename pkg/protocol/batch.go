package protocol

import "github.com/riftwire/pgclient/pkg/buffer"

// Encodable is any outbound message produced by this package.
type Encodable interface {
	Encode(writer *buffer.Writer) error
}

// Batch encodes several messages back to back onto the same writer, so the
// extended-query pipeline (Parse/Bind/Describe/Execute/Sync) can be handed
// to the connection's buffered writer and flushed once instead of five
// times.
func Batch(writer *buffer.Writer, messages ...Encodable) error {
	for _, msg := range messages {
		if err := msg.Encode(writer); err != nil {
			return err
		}
	}

	return nil
}

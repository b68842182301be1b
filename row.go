package wire

import (
	"context"
	"fmt"

	"github.com/riftwire/pgclient/pkg/protocol"
	"github.com/riftwire/pgclient/pkg/typeregistry"
)

// Row is an ordered sequence of decoded column values with name lookup:
// names map to indices, indices are authoritative. A NULL column decodes
// to Go's untyped nil, distinguishable from any real decoded value.
type Row struct {
	columns map[string]int
	names   []string
	values  []any
}

func newRow(ctx context.Context, desc protocol.RowDescription, data protocol.DataRow, registry *typeregistry.Registry, serverEncoding string) (Row, error) {
	row := Row{
		columns: make(map[string]int, len(desc.Fields)),
		names:   make([]string, len(desc.Fields)),
		values:  make([]any, len(desc.Fields)),
	}

	for i, field := range desc.Fields {
		row.names[i] = field.Name
		if _, exists := row.columns[field.Name]; !exists {
			row.columns[field.Name] = i
		}

		if i >= len(data.Values) || data.Values[i] == nil {
			row.values[i] = nil
			continue
		}

		c, err := registry.Lookup(ctx, field.DataTypeOID)
		if err != nil {
			return Row{}, fmt.Errorf("column %q: %w", field.Name, err)
		}

		value, err := c.Decode(registry.TypeMap(), field.Format, data.Values[i])
		if err != nil {
			return Row{}, fmt.Errorf("column %q: %w", field.Name, err)
		}

		if s, ok := value.(string); ok && serverEncoding != "" {
			value, err = decodeServerText(serverEncoding, []byte(s))
			if err != nil {
				return Row{}, fmt.Errorf("column %q: transcode %s: %w", field.Name, serverEncoding, err)
			}
		}

		row.values[i] = value
	}

	return row, nil
}

// Len returns the number of columns.
func (r Row) Len() int { return len(r.values) }

// Names returns the column names in declaration order.
func (r Row) Names() []string { return r.names }

// Get returns the value at the given 0-based column index.
func (r Row) Get(index int) (any, error) {
	if index < 0 || index >= len(r.values) {
		return nil, fmt.Errorf("column index %d out of range (row has %d columns)", index, len(r.values))
	}
	return r.values[index], nil
}

// GetNamed returns the value of the column with the given name.
func (r Row) GetNamed(name string) (any, error) {
	index, ok := r.columns[name]
	if !ok {
		return nil, fmt.Errorf("no column named %q", name)
	}
	return r.values[index], nil
}

// Values returns every column's decoded value, in declaration order.
func (r Row) Values() []any {
	out := make([]any, len(r.values))
	copy(out, r.values)
	return out
}

// Transform returns a new Row with the same schema, passing each column's
// value through the positional callable at the same index. A nil callable
// (or a positional list shorter than the row) leaves the remaining columns
// unchanged.
func (r Row) Transform(callables ...func(any) any) Row {
	out := Row{columns: r.columns, names: r.names, values: make([]any, len(r.values))}
	for i, v := range r.values {
		if i < len(callables) && callables[i] != nil {
			out.values[i] = callables[i](v)
			continue
		}
		out.values[i] = v
	}
	return out
}

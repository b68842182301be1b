package wire

import (
	"golang.org/x/text/encoding/charmap"
)

// serverCharmaps maps the handful of non-UTF8 server_encoding values this
// runtime knows how to transcode to their golang.org/x/text charmap. Any
// encoding not listed here (including the default UTF8 and SQL_ASCII) is
// passed through unchanged, matching how the wire already treats bytes
// copied straight out of a DataRow.
var serverCharmaps = map[string]*charmap.Charmap{
	"LATIN1":     charmap.ISO8859_1,
	"LATIN9":     charmap.ISO8859_15,
	"WIN1252":    charmap.Windows1252,
	"ISO_8859_1": charmap.ISO8859_1,
}

// decodeServerText converts bytes the server sent for a text-like column
// (text, varchar, bpchar, name) from its reported server_encoding into a Go
// UTF-8 string. Most deployments run UTF8 end to end, in which case this is
// a plain byte-to-string cast; the charmap path only engages for the
// handful of single-byte legacy encodings Postgres still ships.
func decodeServerText(encoding string, data []byte) (string, error) {
	cm, ok := serverCharmaps[encoding]
	if !ok {
		return string(data), nil
	}

	decoded, err := cm.NewDecoder().Bytes(data)
	if err != nil {
		return "", err
	}
	return string(decoded), nil
}

package wire

import (
	"crypto/md5" //nolint:gosec // required by the wire protocol's MD5 auth mechanism
	"encoding/hex"
)

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

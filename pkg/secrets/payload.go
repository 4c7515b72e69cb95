package secrets

import (
	"bytes"
	"encoding/base64"
)

// decodePayload accepts either a raw DER key store or its base64 text form.
// DER starts with a SEQUENCE tag followed by a length byte that is never
// valid base64, so the two cannot be confused.
func decodePayload(data []byte) []byte {
	text := bytes.TrimSpace(data)
	if len(text) == 0 {
		return data
	}
	decoded := make([]byte, base64.StdEncoding.DecodedLen(len(text)))
	n, err := base64.StdEncoding.Decode(decoded, text)
	if err != nil {
		return data
	}
	wipe(data)
	return decoded[:n]
}

func decodeString(s string) []byte {
	return decodePayload([]byte(s))
}

package face

import (
	"bytes"
	"encoding/base64"
	"strings"
)

var imageMagic = [][]byte{
	{0xFF, 0xD8, 0xFF},    // jpeg
	{0x89, 'P', 'N', 'G'}, // png
	{'G', 'I', 'F', '8'},  // gif
}

// DecodePhoto turns a base64 payload (optionally a data URL) into raw image
// bytes. Payloads that do not decode, or decode to something that is not a
// jpeg/png/gif, fail with ErrInvalidImage. An empty payload returns nil bytes
// and no error so callers can treat it as "no photo supplied".
func DecodePhoto(encoded string) ([]byte, error) {
	encoded = strings.TrimSpace(encoded)
	if encoded == "" {
		return nil, nil
	}
	if idx := strings.IndexByte(encoded, ','); idx >= 0 && strings.HasPrefix(encoded, "data:") {
		encoded = encoded[idx+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		if raw, err = base64.RawStdEncoding.DecodeString(encoded); err != nil {
			return nil, ErrInvalidImage
		}
	}
	for _, magic := range imageMagic {
		if bytes.HasPrefix(raw, magic) {
			return raw, nil
		}
	}
	return nil, ErrInvalidImage
}

package engine

import "encoding/base64"

func encodeKey(key []byte) string {
	return base64.StdEncoding.EncodeToString(key)
}

func decodeKey(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

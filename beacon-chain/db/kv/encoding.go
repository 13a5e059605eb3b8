package kv

import "encoding/json"

// encodeJSON/decodeJSON are the store's single (de)serialization seam: every
// bucket value is JSON so a future SSZ-backed encoding can be swapped in
// without touching the bucket-access code.
func encodeJSON(v interface{}) ([]byte, error) {
	return json.Marshal(v)
}

func decodeJSON(data []byte, v interface{}) error {
	return json.Unmarshal(data, v)
}

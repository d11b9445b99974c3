package utils

import (
	"encoding/json"
	"fmt"
)

// ToRawMessage marshals v once so the result can be embedded in an outer
// payload without a second encode.
func ToRawMessage(v interface{}) (json.RawMessage, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal to raw message: %w", err)
	}
	return json.RawMessage(data), nil
}

package queue

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// marshalJSON encodes a wire payload.
func marshalJSON(value any) ([]byte, error) {
	data, err := sonic.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}

	return data, nil
}

// unmarshalJSON parses a wire payload into the target.
func unmarshalJSON(data []byte, target any) error {
	err := sonic.Unmarshal(data, target)
	if err != nil {
		return fmt.Errorf("failed to unmarshal JSON: %w", err)
	}

	return nil
}

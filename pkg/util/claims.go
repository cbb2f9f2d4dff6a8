package util

import (
	"errors"
	"fmt"
	"strings"
)

var errInvalidInput = errors.New("invalid input or empty path")

// Claim extracts a value from a JSON-like map using jq-style dotted path
// notation, eg ".preferred_username" or ".resource_access.account.name".
func Claim(input map[string]any, path string) (any, error) {
	if input == nil || path == "" {
		return nil, errInvalidInput
	}

	path = strings.TrimPrefix(path, ".")

	var current any = input
	for key := range strings.SplitSeq(path, ".") {
		if key == "" {
			continue
		}

		currentMap, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected map at path segment: %s", key)
		}

		value, exists := currentMap[key]
		if !exists {
			return nil, fmt.Errorf("key not found: %s", key)
		}
		current = value
	}

	return current, nil
}

// ClaimString is Claim constrained to string values.
func ClaimString(input map[string]any, path string) (string, error) {
	v, err := Claim(input, path)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("claim at %s is not a string", path)
	}
	return s, nil
}

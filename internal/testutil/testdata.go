package testutil

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/goccy/go-json"
)

// LoadJSON reads and unmarshals a JSON fixture relative to this package. If
// target is provided, the JSON is additionally unmarshaled into it.
func LoadJSON(filename string, target ...any) (map[string]any, error) {
	var result map[string]any

	_, currentFile, _, _ := runtime.Caller(0)
	dir := filepath.Dir(currentFile)

	data, err := os.ReadFile(filepath.Join(dir, filename))
	if err != nil {
		return nil, err
	}

	err = json.Unmarshal(data, &result)
	if err != nil {
		return nil, err
	}

	if len(target) > 0 && target[0] != nil {
		err = json.Unmarshal(data, target[0])
		if err != nil {
			return nil, err
		}
	}

	return result, nil
}

package sandbox

import (
	"fmt"
	"os"
)

func readModule(path string) ([]byte, error) {
	if path == "" {
		return nil, fmt.Errorf("sandbox module path is not configured")
	}
	// #nosec G304 -- module path is an operator-supplied configuration value.
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sandbox module %s: %w", path, err)
	}
	return data, nil
}

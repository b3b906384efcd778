package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/robotics-oss/ros-repo-metrics/model"
)

// WriteJSON writes v indented, without escaping HTML characters in URLs
func WriteJSON(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")

	if err := enc.Encode(v); err != nil {
		return err
	}

	return WriteFile(path, buf.Bytes())
}

// WriteJSONLines writes one compact JSON document per line
func WriteJSONLines[T any](path string, items []T) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}

	return WriteFile(path, buf.Bytes())
}

// ReadJSON decodes path into v; a missing file is model.ErrMissingInput
func ReadJSON(path string, v any) error {
	data, err := ReadFile(path)
	if err != nil {
		return err
	}

	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrInvalidData, path, err)
	}

	return nil
}

func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", model.ErrMissingInput, path)
	}

	return data, err
}

// WriteFile creates parent directories then writes data
func WriteFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o644)
}

package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/robotics-oss/ros-repo-metrics/model"
)

const timestampLayout = "2006-01-02T15:04:05Z"

// SnapshotMeta describes where and when a snapshot payload was fetched
type SnapshotMeta struct {
	FetchedAt string `json:"fetched_at"`
	RunID     string `json:"run_id,omitempty"`
	Source    string `json:"source"`
	Endpoint  string `json:"endpoint"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
	PerPage   int    `json:"per_page,omitempty"`
}

type Snapshot struct {
	Meta SnapshotMeta    `json:"_meta"`
	Data json.RawMessage `json:"data"`
}

// WriteSnapshot wraps data with its metadata; FetchedAt is stamped when empty
func WriteSnapshot(path string, meta SnapshotMeta, data any) error {
	if meta.FetchedAt == "" {
		meta.FetchedAt = time.Now().UTC().Format(timestampLayout)
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return err
	}

	return WriteJSON(path, Snapshot{Meta: meta, Data: raw})
}

// ReadSnapshotData decodes the payload of a snapshot into v.
// Files holding a bare payload without the _meta envelope are accepted too.
func ReadSnapshotData(path string, v any) error {
	var envelope map[string]json.RawMessage
	if err := ReadJSON(path, &envelope); err != nil {
		// bare arrays do not fit a map, decode them directly
		return ReadJSON(path, v)
	}

	payload := []byte(nil)
	if data, ok := envelope["data"]; ok {
		if _, hasMeta := envelope["_meta"]; hasMeta {
			payload = data
		}
	}

	if payload == nil {
		return ReadJSON(path, v)
	}

	if err := json.Unmarshal(payload, v); err != nil {
		return fmt.Errorf("%w: %s: %v", model.ErrInvalidData, path, err)
	}

	return nil
}

// SnapshotValid reports whether path exists, is not empty and holds valid JSON
func SnapshotValid(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.Size() == 0 {
		return false
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return false
	}

	return json.Valid(data)
}

package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"github.com/roach88/steadyboard/internal/ir"
)

// JSONConfig locates the snapshot endpoint.
type JSONConfig struct {
	URL string
}

// JSONSource reads a whole snapshot from one endpoint:
//
//	{"participants": [{...}], "event": {...}, "control": {...}, "signature": "..."}
//
// Object keys become table headers, so the same synonym table applies.
type JSONSource struct {
	cfg   JSONConfig
	retry RetryConfig
	opts  options
}

// NewJSONSource creates a JSON snapshot adapter.
func NewJSONSource(cfg JSONConfig, retry RetryConfig, timeout time.Duration, opts ...Option) (*JSONSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("json source: URL is required")
	}
	if err := retry.Validate(); err != nil {
		return nil, err
	}
	return &JSONSource{cfg: cfg, retry: retry, opts: buildOptions(timeout, opts)}, nil
}

// Name implements engine.Source.
func (s *JSONSource) Name() string { return "json" }

type snapshotDoc struct {
	Participants *[]map[string]any `json:"participants"`
	Event        map[string]any    `json:"event"`
	Control      map[string]any    `json:"control"`
	Signature    string            `json:"signature"`
}

// Fetch reads and converts one snapshot document.
func (s *JSONSource) Fetch(ctx context.Context) (ir.RawSnapshot, error) {
	var raw ir.RawSnapshot
	err := retry(ctx, s.retry, s.opts.hook(s.Name(), "snapshot"), func(ctx context.Context, _ int) error {
		target, err := cacheBust(s.cfg.URL, s.opts.now())
		if err != nil {
			return ir.NewShapeError(s.Name(), fmt.Sprintf("invalid URL: %v", err))
		}
		body, _, err := get(ctx, s.opts.client, s.Name(), target)
		if err != nil {
			return err
		}
		raw, err = ParseSnapshotJSON(body)
		return err
	})
	if err != nil {
		return ir.RawSnapshot{}, err
	}
	return raw, nil
}

// ParseSnapshotJSON converts a snapshot document into header-first tables.
// A missing participants array is a shape error; a missing event object
// means the event state is read from the participant rows.
func ParseSnapshotJSON(data []byte) (ir.RawSnapshot, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var doc snapshotDoc
	if err := dec.Decode(&doc); err != nil {
		return ir.RawSnapshot{}, ir.NewShapeError("json", fmt.Sprintf("invalid snapshot document: %v", err))
	}
	if doc.Participants == nil {
		return ir.RawSnapshot{}, ir.NewShapeError("json", "snapshot has no participants array")
	}

	raw := ir.RawSnapshot{
		Source:       "json",
		Participants: objectsTable(*doc.Participants),
		Signature:    doc.Signature,
	}
	if doc.Event != nil {
		raw.Event = objectsTable([]map[string]any{doc.Event})
	}
	if doc.Control != nil {
		raw.Control = objectsTable([]map[string]any{doc.Control})
	}
	return raw, nil
}

// objectsTable builds a table whose header is the sorted union of keys.
func objectsTable(objs []map[string]any) ir.Table {
	if len(objs) == 0 {
		return ir.Table{}
	}
	seen := make(map[string]bool)
	var header []string
	for _, obj := range objs {
		for k := range obj {
			if !seen[k] {
				seen[k] = true
				header = append(header, k)
			}
		}
	}
	slices.Sort(header)

	t := ir.Table{header}
	for _, obj := range objs {
		row := make([]string, len(header))
		for i, k := range header {
			row[i] = cellString(obj[k])
		}
		t = append(t, row)
	}
	return t
}

func cellString(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case json.Number:
		return v.String()
	case bool:
		if v {
			return "true"
		}
		return "false"
	default:
		// Nested arrays and objects are not table cells.
		return ""
	}
}

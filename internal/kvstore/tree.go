package kvstore

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Documents are merged as generic JSON trees: map[string]any objects with
// json.Number leaves so epoch-millisecond timestamps survive a round trip.

func splitPath(path string) ([]string, error) {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}
	segs := strings.Split(trimmed, "/")
	for _, s := range segs {
		if s == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
		}
	}
	return segs, nil
}

func validateFields(fields map[string]any) error {
	for key := range fields {
		if _, err := splitPath(key); err != nil {
			return err
		}
	}
	return nil
}

func toTree(v any) (any, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encoding value: %w", err)
	}
	return decodeTree(data)
}

func decodeTree(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("decoding value: %w", err)
	}
	return out, nil
}

func lookup(node any, segs []string) (any, bool) {
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, false
		}
		if node, ok = m[s]; !ok {
			return nil, false
		}
	}
	return node, node != nil
}

// assign stores value at segs below root, creating intermediate objects, and
// returns the new root. A nil value removes the leaf.
func assign(root any, segs []string, value any) any {
	if len(segs) == 0 {
		return value
	}
	m, ok := root.(map[string]any)
	if !ok {
		m = make(map[string]any)
	}
	if len(segs) == 1 {
		if value == nil {
			delete(m, segs[0])
		} else {
			m[segs[0]] = value
		}
		return m
	}
	m[segs[0]] = assign(m[segs[0]], segs[1:], value)
	return m
}

// merge applies fields to node. Keys are applied in sorted order so an
// ancestor key is always applied before its descendants.
func merge(node any, fields map[string]any) (any, error) {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		segs, err := splitPath(k)
		if err != nil {
			return nil, err
		}
		v, err := toTree(fields[k])
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", k, err)
		}
		node = assign(node, segs, v)
	}
	return node, nil
}

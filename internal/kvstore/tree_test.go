package kvstore

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeAppliesAncestorFirst(t *testing.T) {
	node, err := merge(nil, map[string]any{
		"roundResults/round1/p1": map[string]any{"time": 3, "points": 10},
		"roundResults":           map[string]any{},
	})
	require.NoError(t, err)

	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"roundResults":{"round1":{"p1":{"time":3,"points":10}}}}`, string(data))
}

func TestAssignReplacesScalarWithObject(t *testing.T) {
	root := map[string]any{"a": "scalar"}
	got := assign(root, []string{"a", "b"}, "leaf")
	assert.Equal(t, map[string]any{"a": map[string]any{"b": "leaf"}}, got)
}

func TestDecodeTreeKeepsLargeIntegers(t *testing.T) {
	node, err := decodeTree([]byte(`{"createdAt":1760000000123}`))
	require.NoError(t, err)
	data, err := json.Marshal(node)
	require.NoError(t, err)
	assert.JSONEq(t, `{"createdAt":1760000000123}`, string(data))
}

func TestSplitPath(t *testing.T) {
	tests := []struct {
		path    string
		want    []string
		wantErr bool
	}{
		{path: "parties/ABC123", want: []string{"parties", "ABC123"}},
		{path: "/parties/ABC123/", want: []string{"parties", "ABC123"}},
		{path: "", wantErr: true},
		{path: "parties//x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			got, err := splitPath(tt.path)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

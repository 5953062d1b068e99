package models

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseShape(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw     string
		want    Shape
		wantErr bool
	}{
		{"TRIANGLE", ShapeTriangle, false},
		{"CIRCLE", ShapeCircle, false},
		{" SQUARE ", ShapeSquare, false},
		{"DIAMOND", ShapeDiamond, false},
		{"HEXAGON", ShapeHexagon, false},
		{"circle", "", true},
		{"STAR", "", true},
		{"", "", true},
	}

	for _, tt := range tests {
		got, err := ParseShape(tt.raw)
		if tt.wantErr {
			require.Error(t, err, tt.raw)
			assert.Equal(t, CodeValidation, ErrorCode(err))
			continue
		}
		require.NoError(t, err, tt.raw)
		assert.Equal(t, tt.want, got)
	}
}

func TestShapeCounts_AddAndGet(t *testing.T) {
	t.Parallel()

	var c ShapeCounts
	for _, s := range Shapes {
		c.Add(s, 2)
	}
	c.Add(ShapeHexagon, 1)
	c.Add(Shape("STAR"), 100)

	assert.Equal(t, int64(2), c.Get(ShapeTriangle))
	assert.Equal(t, int64(3), c.Get(ShapeHexagon))
	assert.Equal(t, int64(0), c.Get(Shape("STAR")))
	assert.Equal(t, int64(11), c.Total())
}

func TestShapeCounts_JSONKeysAlwaysPresent(t *testing.T) {
	t.Parallel()

	raw, err := json.Marshal(ShapeCounts{})
	require.NoError(t, err)

	var decoded map[string]int64
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded, len(Shapes))
	for _, s := range Shapes {
		key := strings.ToLower(string(s))
		v, ok := decoded[key]
		assert.True(t, ok, "missing key %s", key)
		assert.Zero(t, v)
	}
}

func TestNewFeedPost_NullReactionAndEmptyImages(t *testing.T) {
	t.Parallel()

	fp := NewFeedPost(&Post{ID: 7, UserID: 3, Content: "hello"})

	raw, err := json.Marshal(fp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Nil(t, decoded["userReaction"])
	assert.Equal(t, []any{}, decoded["images"])
	assert.Equal(t, float64(3), decoded["authorId"])
}

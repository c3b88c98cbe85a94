// SPDX-License-Identifier: MPL-2.0

package cueutil

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSchema = `
#Thing: {
	name:  string
	count: int & >=0 | *1
	tags?: [...string]
}
`

type thing struct {
	Name  string   `json:"name"`
	Count int      `json:"count"`
	Tags  []string `json:"tags,omitempty"`
}

func TestDecode(t *testing.T) {
	t.Parallel()

	t.Run("defaults applied", func(t *testing.T) {
		t.Parallel()
		got, err := Decode[thing]([]byte(testSchema), "#Thing", []byte(`name: "box"`))
		require.NoError(t, err)
		assert.Equal(t, "box", got.Name)
		assert.Equal(t, 1, got.Count)
	})

	t.Run("schema violation names the file", func(t *testing.T) {
		t.Parallel()
		_, err := Decode[thing]([]byte(testSchema), "#Thing", []byte(`name: "box", count: -2`), WithFilename("thing.cue"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "thing.cue")
	})

	t.Run("closed definition rejects unknown fields", func(t *testing.T) {
		t.Parallel()
		_, err := Decode[thing]([]byte(testSchema), "#Thing", []byte(`name: "box", colour: "red"`))
		require.Error(t, err)
	})

	t.Run("size limit", func(t *testing.T) {
		t.Parallel()
		_, err := Decode[thing]([]byte(testSchema), "#Thing", []byte(`name: "box"`), WithMaxFileSize(3))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exceeds maximum")
	})
}

func TestDecodeValue(t *testing.T) {
	t.Parallel()

	in := map[string]any{"name": "crate", "tags": []any{"a", "b"}}
	got, err := DecodeValue[thing]([]byte(testSchema), "#Thing", in)
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, got.Tags)
	assert.Equal(t, 1, got.Count)
}

func TestMarshalThenDecode(t *testing.T) {
	t.Parallel()

	src := thing{Name: "barrel", Count: 4, Tags: []string{"x"}}
	out, err := Marshal(src)
	require.NoError(t, err)
	assert.False(t, strings.HasPrefix(strings.TrimSpace(string(out)), "{"), "struct should be written as a file body")

	back, err := Decode[thing]([]byte(testSchema), "#Thing", out)
	require.NoError(t, err)
	assert.Equal(t, src, *back)
}

func TestFormatError(t *testing.T) {
	t.Parallel()

	assert.NoError(t, FormatError(nil, "x.cue"))

	err := FormatError(errors.New("boom"), "x.cue")
	require.Error(t, err)
	assert.Equal(t, "x.cue: boom", err.Error())
}

func TestFormatPath(t *testing.T) {
	t.Parallel()

	tests := []struct {
		path []string
		want string
	}{
		{nil, ""},
		{[]string{"name"}, "name"},
		{[]string{"worlds", "0", "physics", "type"}, "worlds[0].physics.type"},
		{[]string{"0"}, "0"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, formatPath(tt.path))
	}
}

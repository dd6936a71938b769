package iojson

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteWith(t *testing.T) {
	var out, errOut bytes.Buffer

	require.NoError(t, WriteWith(&out, &errOut, map[string]int{"a": 1}))
	assert.Equal(t, "{\n  \"a\": 1\n}\n", out.String())
	assert.Empty(t, errOut.String())
}

func TestWriteWith_MarshalFailure(t *testing.T) {
	var out, errOut bytes.Buffer

	require.NoError(t, WriteWith(&out, &errOut, map[string]any{"f": func() {}}))
	assert.Empty(t, out.String())

	var e Error
	require.NoError(t, json.Unmarshal(errOut.Bytes(), &e))
	assert.Equal(t, "error marshaling in iojson.Write", e.Message)
	assert.Contains(t, e.Data, "json_error")
}

func TestWriteLine(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, WriteLine(&out, map[string]string{"op": "write"}))
	require.NoError(t, WriteLine(&out, map[string]string{"op": "remove"}))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	assert.Equal(t, []string{`{"op":"write"}`, `{"op":"remove"}`}, lines)

	assert.Error(t, WriteLine(&out, make(chan int)))
}

func TestWriteErrorTo(t *testing.T) {
	var out bytes.Buffer

	require.NoError(t, WriteErrorTo(&out, "invalid key", map[string]any{"field": "key"}))
	assert.JSONEq(t, `{"message":"invalid key","data":{"field":"key"}}`, out.String())

	out.Reset()
	require.NoError(t, WriteErrorTo(&out, "plain", nil))
	assert.JSONEq(t, `{"message":"plain"}`, out.String())
}

func TestMarshalError_Fallback(t *testing.T) {
	got := MarshalError(`quote " here`, map[string]any{"bad": make(chan int)})

	var e Error
	require.NoError(t, json.Unmarshal([]byte(got), &e))
	assert.Equal(t, `quote " here`, e.Message)
	assert.Contains(t, e.Data, "json_error")
}

func TestFileReader(t *testing.T) {
	t.Run("from file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "in.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"n":9007199254740993}`), 0o644))

		fr := &FileReader[json.RawMessage]{fileFlagValue: path}
		assert.True(t, fr.IsSet())

		got, err := fr.Read()
		require.NoError(t, err)
		assert.JSONEq(t, `{"n":9007199254740993}`, string(got))
	})

	t.Run("from stdin override", func(t *testing.T) {
		fr := &FileReader[map[string]any]{Stdin: strings.NewReader(`{"a":1}`)}
		assert.False(t, fr.IsSet())

		got, err := fr.Read()
		require.NoError(t, err)
		assert.Equal(t, json.Number("1"), got["a"])
	})

	t.Run("missing file", func(t *testing.T) {
		fr := &FileReader[any]{fileFlagValue: filepath.Join(t.TempDir(), "nope.json")}
		_, err := fr.Read()
		assert.ErrorContains(t, err, "open file")
	})

	t.Run("invalid json", func(t *testing.T) {
		fr := &FileReader[any]{Stdin: strings.NewReader(`{`)}
		_, err := fr.Read()
		assert.ErrorContains(t, err, "decode JSON")
	})
}

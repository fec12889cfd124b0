package output

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		format  string
		want    any
		wantErr bool
	}{
		{format: "csv", want: &CSVWriter{}},
		{format: "", want: &CSVWriter{}},
		{format: "NDJSON", want: &NDJSONWriter{}},
		{format: "jsonl", want: &NDJSONWriter{}},
		{format: "xml", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			w, err := New(tt.format, &bytes.Buffer{})
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.IsType(t, tt.want, w)
		})
	}
}

func TestCSVWriter_NonNumericQuoting(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"slug", "id", "has_wiki", "comment", "score"}))
	require.NoError(t, w.Write([]any{"web", json.Number("42"), true, nil, 1.5}))
	require.NoError(t, w.Write([]any{`say "hi", ok`, 7, false, "line\nbreak", int64(-3)}))
	require.NoError(t, w.Close())

	want := `"slug","id","has_wiki","comment","score"` + "\n" +
		`"web",42,true,,1.5` + "\n" +
		`"say ""hi"", ok",7,false,"line` + "\n" + `break",-3` + "\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, w.Count())
}

func TestCSVWriter_NestedValuesAsJSON(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"links"}))
	require.NoError(t, w.Write([]any{map[string]any{"a": 1}}))
	require.NoError(t, w.Close())

	assert.Equal(t, "\"links\"\n\"{\"\"a\"\":1}\"\n", buf.String())
}

func TestCSVWriter_Time(t *testing.T) {
	var buf bytes.Buffer
	w := NewCSVWriter(&buf)

	ts := time.Date(2024, 5, 1, 10, 30, 0, 0, time.UTC)
	require.NoError(t, w.WriteHeader([]string{"created_on"}))
	require.NoError(t, w.Write([]any{ts}))
	require.NoError(t, w.Close())

	assert.Equal(t, "\"created_on\"\n\"2024-05-01T10:30:00Z\"\n", buf.String())
}

func TestWriter_Errors(t *testing.T) {
	for _, format := range []string{FormatCSV, FormatNDJSON} {
		t.Run(format, func(t *testing.T) {
			w, err := New(format, &bytes.Buffer{})
			require.NoError(t, err)

			assert.Error(t, w.Write([]any{"x"}), "write before header")
			assert.Error(t, w.WriteHeader(nil), "empty header")
			require.NoError(t, w.WriteHeader([]string{"a", "b"}))
			assert.Error(t, w.WriteHeader([]string{"a"}), "second header")
			assert.Error(t, w.Write([]any{"only one"}), "arity mismatch")
			assert.Equal(t, 0, w.Count())
		})
	}
}

func TestNDJSONWriter(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"vcs", "org", "project", "name", "value"}))
	require.NoError(t, w.Write([]any{"gh", "acme", "web", "API_KEY", "xxxx1234"}))
	require.NoError(t, w.Write([]any{"gh", "acme", "web", "EMPTY", nil}))
	require.NoError(t, w.Close())

	want := `{"vcs":"gh","org":"acme","project":"web","name":"API_KEY","value":"xxxx1234"}` + "\n" +
		`{"vcs":"gh","org":"acme","project":"web","name":"EMPTY","value":null}` + "\n"
	assert.Equal(t, want, buf.String())
	assert.Equal(t, 2, w.Count())
}

func TestNDJSONWriter_NumbersStayNumbers(t *testing.T) {
	var buf bytes.Buffer
	w := NewNDJSONWriter(&buf)

	require.NoError(t, w.WriteHeader([]string{"id", "active"}))
	require.NoError(t, w.Write([]any{json.Number("12345678901234567890"), true}))
	require.NoError(t, w.Close())

	assert.Equal(t, `{"id":12345678901234567890,"active":true}`+"\n", buf.String())
}

func TestOpen_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.csv")

	w, err := Open(FormatCSV, path)
	require.NoError(t, err)
	require.NoError(t, w.WriteHeader([]string{"a"}))
	require.NoError(t, w.Write([]any{"x"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "\"a\"\n\"x\"\n", string(data))
}

func TestOpen_InvalidFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.xml")
	_, err := Open("xml", path)
	assert.Error(t, err)
}

package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Supported formats.
const (
	FormatCSV    = "csv"
	FormatNDJSON = "ndjson"
)

// RecordWriter writes a header followed by records with the same arity.
type RecordWriter interface {
	// WriteHeader sets the column names. It must be called once, before Write.
	WriteHeader(columns []string) error

	// Write writes one record. len(values) must match the header.
	Write(values []any) error

	// Count returns the number of records written.
	Count() int

	// Close flushes buffered output and closes the underlying file, if any.
	Close() error
}

// New returns a RecordWriter for format writing to w.
func New(format string, w io.Writer) (RecordWriter, error) {
	switch strings.ToLower(format) {
	case FormatCSV, "":
		return NewCSVWriter(w), nil
	case FormatNDJSON, "jsonl":
		return NewNDJSONWriter(w), nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want csv or ndjson)", format)
	}
}

// Open returns a RecordWriter for format writing to path, or to stdout when
// path is empty or "-".
func Open(format, path string) (RecordWriter, error) {
	if path == "" || path == "-" {
		return New(format, os.Stdout)
	}

	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create output file: %w", err)
	}

	w, err := New(format, file)
	if err != nil {
		file.Close()
		return nil, err
	}
	switch tw := w.(type) {
	case *CSVWriter:
		tw.closeFunc = file.Close
	case *NDJSONWriter:
		tw.closeFunc = file.Close
	}
	return w, nil
}

// base holds the state shared by both writers.
type base struct {
	mu        sync.Mutex
	out       *bufio.Writer
	columns   []string
	count     int
	closeFunc func() error
}

func (b *base) setHeader(columns []string) error {
	if b.columns != nil {
		return fmt.Errorf("header already written")
	}
	if len(columns) == 0 {
		return fmt.Errorf("header cannot be empty")
	}
	b.columns = append([]string(nil), columns...)
	return nil
}

func (b *base) checkArity(values []any) error {
	if b.columns == nil {
		return fmt.Errorf("write before header")
	}
	if len(values) != len(b.columns) {
		return fmt.Errorf("record has %d values, header has %d columns", len(values), len(b.columns))
	}
	return nil
}

// Count returns the number of records written.
func (b *base) Count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.count
}

// Close flushes and closes the underlying file, if any.
func (b *base) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.out.Flush(); err != nil {
		return fmt.Errorf("flush output: %w", err)
	}
	if b.closeFunc != nil {
		return b.closeFunc()
	}
	return nil
}

// CSVWriter writes comma-separated records with non-numeric quoting.
type CSVWriter struct {
	base
}

// NewCSVWriter creates a CSVWriter.
func NewCSVWriter(w io.Writer) *CSVWriter {
	return &CSVWriter{base: base{out: bufio.NewWriter(w)}}
}

// WriteHeader writes the quoted header row.
func (w *CSVWriter) WriteHeader(columns []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.setHeader(columns); err != nil {
		return err
	}
	values := make([]any, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	return w.writeRow(values)
}

// Write writes one record.
func (w *CSVWriter) Write(values []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkArity(values); err != nil {
		return err
	}
	if err := w.writeRow(values); err != nil {
		return err
	}
	w.count++
	return nil
}

func (w *CSVWriter) writeRow(values []any) error {
	for i, v := range values {
		if i > 0 {
			w.out.WriteByte(',')
		}
		field, quote, err := csvField(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", w.columns[i], err)
		}
		if quote {
			w.out.WriteByte('"')
			w.out.WriteString(strings.ReplaceAll(field, `"`, `""`))
			w.out.WriteByte('"')
		} else {
			w.out.WriteString(field)
		}
	}
	if _, err := w.out.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	return nil
}

// csvField renders v and reports whether it must be quoted.
func csvField(v any) (string, bool, error) {
	switch x := v.(type) {
	case nil:
		return "", false, nil
	case string:
		return x, true, nil
	case json.Number:
		return x.String(), false, nil
	case bool:
		return strconv.FormatBool(x), false, nil
	case int:
		return strconv.Itoa(x), false, nil
	case int64:
		return strconv.FormatInt(x, 10), false, nil
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), false, nil
	case time.Time:
		return x.Format(time.RFC3339), true, nil
	case fmt.Stringer:
		return x.String(), true, nil
	default:
		data, err := json.Marshal(x)
		if err != nil {
			return "", false, err
		}
		return string(data), true, nil
	}
}

// NDJSONWriter writes one JSON object per record.
type NDJSONWriter struct {
	base
}

// NewNDJSONWriter creates an NDJSONWriter.
func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	return &NDJSONWriter{base: base{out: bufio.NewWriter(w)}}
}

// WriteHeader records the object keys; nothing is written.
func (w *NDJSONWriter) WriteHeader(columns []string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.setHeader(columns)
}

// Write writes one record as a JSON object with keys in header order.
func (w *NDJSONWriter) Write(values []any) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.checkArity(values); err != nil {
		return err
	}

	var line strings.Builder
	line.WriteByte('{')
	for i, v := range values {
		if i > 0 {
			line.WriteByte(',')
		}
		key, _ := json.Marshal(w.columns[i])
		if t, ok := v.(time.Time); ok {
			v = t.Format(time.RFC3339)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("column %q: %w", w.columns[i], err)
		}
		line.Write(key)
		line.WriteByte(':')
		line.Write(val)
	}
	line.WriteString("}\n")

	if _, err := w.out.WriteString(line.String()); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.count++
	return nil
}

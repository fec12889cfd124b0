// Package template renders one output file per CSV row from a text template
// with $key and ${key} placeholders.
package template

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/Sternrassler/apictl/pkg/logging"
)

// ErrUnknownKey is returned when a placeholder names no CSV column.
var ErrUnknownKey = errors.New("unknown template key")

// ErrInvalidPlaceholder is returned for a "$" not followed by "$", an
// identifier or a braced identifier.
var ErrInvalidPlaceholder = errors.New("invalid placeholder")

var placeholder = regexp.MustCompile(`\$(?:(\$)|([_a-zA-Z][_a-zA-Z0-9]*)|\{([_a-zA-Z][_a-zA-Z0-9]*)\}|)`)

// Template is a parsed text template.
type Template struct {
	text string
}

// New returns a Template for text. Placeholders are checked when rendering.
func New(text string) *Template {
	return &Template{text: text}
}

// Substitute replaces every placeholder with its value from values. "$$" is a
// literal "$".
func (t *Template) Substitute(values map[string]string) (string, error) {
	var b strings.Builder
	last := 0
	for _, m := range placeholder.FindAllStringSubmatchIndex(t.text, -1) {
		b.WriteString(t.text[last:m[0]])
		last = m[1]

		switch {
		case m[2] >= 0:
			b.WriteByte('$')
		case m[4] >= 0 || m[6] >= 0:
			key := t.group(m, 4)
			if key == "" {
				key = t.group(m, 6)
			}
			v, ok := values[key]
			if !ok {
				return "", fmt.Errorf("%w %q", ErrUnknownKey, key)
			}
			b.WriteString(v)
		default:
			line, col := position(t.text, m[0])
			return "", fmt.Errorf("%w at line %d, col %d", ErrInvalidPlaceholder, line, col)
		}
	}
	b.WriteString(t.text[last:])
	return b.String(), nil
}

func (t *Template) group(m []int, i int) string {
	if m[i] < 0 {
		return ""
	}
	return t.text[m[i]:m[i+1]]
}

func position(s string, offset int) (line, col int) {
	before := s[:offset]
	line = strings.Count(before, "\n") + 1
	col = offset - strings.LastIndex(before, "\n")
	return line, col
}

// ReadRows reads a CSV with a header row and returns one map per data row.
func ReadRows(r io.Reader) ([]map[string]string, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var rows []map[string]string
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}
		row := make(map[string]string, len(header))
		for i, key := range header {
			row[key] = record[i]
		}
		rows = append(rows, row)
	}
}

// OutputName returns the file name of row n (zero-based) out of total rows,
// zero-padded to the digit width of total.
func OutputName(n, total int) string {
	width := len(fmt.Sprint(total))
	return fmt.Sprintf("row.%0*d.out", width, n)
}

// Render writes outDir/row.<n>.out for every data row of csvPath, substituted
// into the template at templatePath. outDir must exist. It returns the paths
// written.
func Render(csvPath, templatePath, outDir string) ([]string, error) {
	logger := logging.NewLogger("template")

	info, err := os.Stat(outDir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("directory '%s' does not exist", outDir)
	}

	text, err := os.ReadFile(templatePath)
	if err != nil {
		return nil, fmt.Errorf("read template: %w", err)
	}
	tmpl := New(string(text))

	f, err := os.Open(csvPath)
	if err != nil {
		return nil, fmt.Errorf("open csv: %w", err)
	}
	defer f.Close()

	rows, err := ReadRows(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", csvPath, err)
	}

	paths := make([]string, 0, len(rows))
	for i, row := range rows {
		out, err := tmpl.Substitute(row)
		if err != nil {
			return paths, fmt.Errorf("row %d: %w", i+1, err)
		}
		path := filepath.Join(outDir, OutputName(i, len(rows)))
		if err := os.WriteFile(path, []byte(out), 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", path, err)
		}
		paths = append(paths, path)
	}

	logger.Info().Int("rows", len(rows)).Str("dir", outDir).Msg("Rendered template")
	return paths, nil
}

// Package input resolves list arguments. An argument is either a literal
// value, file://PATH naming a file with one value per line, or "-" for
// values read from stdin.
package input

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// FilePrefix marks an argument naming a file of values.
const FilePrefix = "file://"

// Stdin is the argument that reads values from standard input.
const Stdin = "-"

// Resolver expands list arguments. Stdin is read at most once; repeated "-"
// arguments see the same values.
type Resolver struct {
	Stdin io.Reader

	stdinLines []string
	stdinRead  bool
}

// NewResolver creates a Resolver reading "-" from os.Stdin.
func NewResolver() *Resolver {
	return &Resolver{Stdin: os.Stdin}
}

// Resolve expands one argument into its values.
func (r *Resolver) Resolve(arg string) ([]string, error) {
	switch {
	case arg == Stdin:
		return r.readStdin()
	case strings.HasPrefix(arg, FilePrefix):
		path := strings.TrimPrefix(arg, FilePrefix)
		if path == "" {
			return nil, fmt.Errorf("empty path in %q", arg)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open list file: %w", err)
		}
		defer f.Close()
		return readLines(f)
	default:
		return []string{arg}, nil
	}
}

// ResolveAll expands every argument and concatenates the values in order.
func (r *Resolver) ResolveAll(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		values, err := r.Resolve(arg)
		if err != nil {
			return nil, err
		}
		out = append(out, values...)
	}
	return out, nil
}

func (r *Resolver) readStdin() ([]string, error) {
	if r.stdinRead {
		return append([]string(nil), r.stdinLines...), nil
	}
	if r.Stdin == nil {
		return nil, fmt.Errorf("no stdin available")
	}
	lines, err := readLines(r.Stdin)
	if err != nil {
		return nil, fmt.Errorf("read stdin: %w", err)
	}
	r.stdinLines = lines
	r.stdinRead = true
	return append([]string(nil), lines...), nil
}

// readLines returns the trimmed non-empty lines of rd.
func readLines(rd io.Reader) ([]string, error) {
	var lines []string
	scanner := bufio.NewScanner(rd)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// Package output writes tabular records to stdout or a file.
//
// Two formats are supported:
//
//   - csv: a header row followed by one row per record. Strings are always
//     quoted, numbers and booleans are written bare, null is an empty field.
//   - ndjson: one JSON object per record, keyed by the header columns in
//     header order.
//
// Example usage:
//
//	w, err := output.New("csv", os.Stdout)
//	if err != nil {
//	    return err
//	}
//	defer w.Close()
//
//	_ = w.WriteHeader([]string{"slug", "name"})
//	_ = w.Write([]any{"web", "Web App"})
package output

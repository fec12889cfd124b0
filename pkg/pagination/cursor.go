package pagination

import (
	"fmt"
	"net/url"
	"strings"
)

// CursorMode selects how the next page is located.
type CursorMode int

const (
	// ModeAbsoluteLink reads the next page URL verbatim from a page field.
	ModeAbsoluteLink CursorMode = iota + 1

	// ModeTokenAppend reads a token from a page field and appends it to the
	// first page URL as a query parameter.
	ModeTokenAppend
)

// String implements fmt.Stringer.
func (m CursorMode) String() string {
	switch m {
	case ModeAbsoluteLink:
		return "absolute_link"
	case ModeTokenAppend:
		return "token_append"
	default:
		return fmt.Sprintf("CursorMode(%d)", int(m))
	}
}

// CursorRule extracts the next page location from a fetched page.
type CursorRule struct {
	Mode CursorMode

	// Field is the page field holding the next URL or token.
	Field string

	// Param is the query parameter carrying the token (ModeTokenAppend only).
	Param string
}

// AbsoluteLink returns a rule reading the next page URL from field.
func AbsoluteLink(field string) CursorRule {
	return CursorRule{Mode: ModeAbsoluteLink, Field: field}
}

// TokenAppend returns a rule reading a token from field and sending it back
// as the query parameter param on the first page URL.
func TokenAppend(field, param string) CursorRule {
	return CursorRule{Mode: ModeTokenAppend, Field: field, Param: param}
}

// Validate checks that the rule is complete.
func (r CursorRule) Validate() error {
	switch r.Mode {
	case ModeAbsoluteLink:
	case ModeTokenAppend:
		if r.Param == "" {
			return fmt.Errorf("token cursor requires a query parameter name")
		}
	default:
		return fmt.Errorf("unknown cursor mode %s", r.Mode)
	}
	if r.Field == "" {
		return fmt.Errorf("cursor field cannot be empty")
	}
	return nil
}

// CursorError reports a cursor field holding something other than a string.
// The Fetcher treats it as the end of the listing and only logs it.
type CursorError struct {
	Field string
	Value any
}

// Error implements the error interface.
func (e *CursorError) Error() string {
	return fmt.Sprintf("cursor field %q holds %T, want string", e.Field, e.Value)
}

// Next returns the URL of the page after page. ok is false when the listing
// has ended: the field is missing, null, empty, or malformed (err is then a
// *CursorError).
func (r CursorRule) Next(firstURL string, page Page) (next string, ok bool, err error) {
	raw, present := page[r.Field]
	if !present || raw == nil {
		return "", false, nil
	}

	value, isString := raw.(string)
	if !isString {
		return "", false, &CursorError{Field: r.Field, Value: raw}
	}
	if value == "" {
		return "", false, nil
	}

	if r.Mode == ModeTokenAppend {
		return appendQueryParam(firstURL, r.Param, value), true, nil
	}
	return value, true, nil
}

// appendQueryParam adds key=value after the existing query of rawURL without
// re-encoding or reordering what is already there.
func appendQueryParam(rawURL, key, value string) string {
	fragment := ""
	if i := strings.IndexByte(rawURL, '#'); i >= 0 {
		rawURL, fragment = rawURL[:i], rawURL[i:]
	}

	sep := "&"
	switch {
	case !strings.Contains(rawURL, "?"):
		sep = "?"
	case strings.HasSuffix(rawURL, "?"), strings.HasSuffix(rawURL, "&"):
		sep = ""
	}

	return rawURL + sep + url.QueryEscape(key) + "=" + url.QueryEscape(value) + fragment
}

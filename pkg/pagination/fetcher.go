package pagination

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Sternrassler/apictl/pkg/logging"
)

// maxErrorSnippet bounds how much of a failed response body ends up in errors.
const maxErrorSnippet = 512

// Doer performs HTTP requests. *http.Client and *client.Client satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// PageSource is the static configuration of one pagination session.
type PageSource struct {
	// URL of the first page, static query parameters included.
	URL string

	// Header is sent with every page request (credentials included).
	Header http.Header

	// Cursor locates the following page in each fetched page.
	Cursor CursorRule
}

// Validate checks that the source can start a session.
func (s PageSource) Validate() error {
	if s.URL == "" {
		return fmt.Errorf("page source URL cannot be empty")
	}
	u, err := url.Parse(s.URL)
	if err != nil {
		return fmt.Errorf("parse page source URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("page source URL must be http(s), got %q", s.URL)
	}
	if err := s.Cursor.Validate(); err != nil {
		return fmt.Errorf("page source cursor: %w", err)
	}
	return nil
}

// State is the position of a Fetcher in its two-state lifecycle.
type State int

const (
	// StateFetching means a next URL is pending.
	StateFetching State = iota

	// StateDone is terminal; no more requests will be made.
	StateDone
)

// String implements fmt.Stringer.
func (s State) String() string {
	if s == StateDone {
		return "done"
	}
	return "fetching"
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLogger replaces the component logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Fetcher) {
		f.logger = logger
	}
}

// WithLabel sets the "source" label used on metrics, e.g. "bitbucket_repos".
func WithLabel(label string) Option {
	return func(f *Fetcher) {
		f.label = label
	}
}

// Fetcher walks one PageSource page by page. It is not safe for concurrent
// use; separate Fetchers share nothing and may run in parallel.
type Fetcher struct {
	doer    Doer
	src     PageSource
	pending string
	state   State
	pages   int
	label   string
	logger  zerolog.Logger
}

// NewFetcher creates a Fetcher positioned before the first page of src.
func NewFetcher(doer Doer, src PageSource, opts ...Option) (*Fetcher, error) {
	if doer == nil {
		return nil, fmt.Errorf("http doer is required")
	}
	if err := src.Validate(); err != nil {
		return nil, err
	}

	f := &Fetcher{
		doer:    doer,
		src:     src,
		pending: src.URL,
		state:   StateFetching,
		label:   "default",
		logger:  logging.NewLogger("pagination"),
	}
	for _, opt := range opts {
		opt(f)
	}
	f.logger = f.logger.With().Str("session_id", uuid.NewString()).Logger()

	return f, nil
}

// State returns the current lifecycle state.
func (f *Fetcher) State() State {
	return f.state
}

// Pages returns how many pages have been yielded so far.
func (f *Fetcher) Pages() int {
	return f.pages
}

// Next fetches and returns the pending page. It returns ErrDone once the
// listing has ended; a *FetchError also ends the session.
func (f *Fetcher) Next(ctx context.Context) (Page, error) {
	if f.state == StateDone {
		return nil, ErrDone
	}

	current := f.pending
	if f.pages == 0 {
		f.logger.Debug().
			Str("url", current).
			Str("cursor", f.src.Cursor.Mode.String()).
			Msg("Starting pagination session")
	}

	page, err := f.fetch(ctx, current)
	if err != nil {
		f.finish()
		var fe *FetchError
		if errors.As(err, &fe) {
			pageFetchErrorsTotal.WithLabelValues(string(fe.Kind)).Inc()
		}
		f.logger.Warn().
			Err(err).
			Str("url", current).
			Int("page", f.pages+1).
			Msg("Page fetch failed, ending session")
		return nil, err
	}

	f.pages++
	pagesFetchedTotal.WithLabelValues(f.label).Inc()

	next, ok, cerr := f.src.Cursor.Next(f.src.URL, page)
	if cerr != nil {
		cursorErrorsTotal.Inc()
		f.logger.Warn().
			Err(cerr).
			Str("url", current).
			Int("page", f.pages).
			Msg("Malformed cursor, treating as end of listing")
	}

	if ok {
		f.pending = next
		f.logger.Debug().Int("page", f.pages).Str("next", next).Msg("Page fetched")
	} else {
		f.finish()
		f.logger.Debug().Int("pages", f.pages).Msg("Pagination session complete")
	}

	return page, nil
}

// All returns a single-use iterator over the remaining pages. A failed fetch
// is yielded once as a non-nil error and ends the iteration.
func (f *Fetcher) All(ctx context.Context) iter.Seq2[Page, error] {
	return func(yield func(Page, error) bool) {
		for {
			page, err := f.Next(ctx)
			if errors.Is(err, ErrDone) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

func (f *Fetcher) finish() {
	f.state = StateDone
	f.pending = ""
}

// statusCoder is implemented by client errors that carry an HTTP status.
type statusCoder interface {
	HTTPStatus() int
}

func (f *Fetcher) fetch(ctx context.Context, pageURL string) (Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
	}
	for key, values := range f.src.Header {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json")
	}

	resp, err := f.doer.Do(req)
	if err != nil {
		var sc statusCoder
		if errors.As(err, &sc) && sc.HTTPStatus() != 0 {
			return nil, &FetchError{URL: pageURL, Kind: KindStatus, StatusCode: sc.HTTPStatus(), Err: err}
		}
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorSnippet))
		return nil, &FetchError{
			URL:        pageURL,
			Kind:       KindStatus,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%s: %s", resp.Status, strings.TrimSpace(string(snippet))),
		}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindTransport, Err: fmt.Errorf("read body: %w", err)}
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, &FetchError{URL: pageURL, Kind: KindDecode, Err: err}
	}
	return page, nil
}

// ForEachItem walks every page of src and calls fn for each record under
// itemField. Pages without itemField are skipped with a warning; the cursor
// is still honored on them. Iteration stops at the first error from fn or
// from a page fetch.
func ForEachItem(ctx context.Context, doer Doer, src PageSource, itemField string, fn func(item map[string]any) error, opts ...Option) error {
	f, err := NewFetcher(doer, src, opts...)
	if err != nil {
		return err
	}

	for page, err := range f.All(ctx) {
		if err != nil {
			return err
		}
		items, ok := page.Items(itemField)
		if !ok {
			f.logger.Warn().
				Str("field", itemField).
				Int("page", f.Pages()).
				Msg("Page has no item list, skipping its records")
			continue
		}
		for _, item := range items {
			if err := fn(item); err != nil {
				return err
			}
		}
	}
	return nil
}

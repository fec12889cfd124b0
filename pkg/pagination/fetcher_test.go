package pagination

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sternrassler/apictl/internal/testutil"
	"github.com/Sternrassler/apictl/pkg/apierrors"
)

// scriptedDoer serves canned bodies keyed by URL and records every request.
type scriptedDoer struct {
	mu       sync.Mutex
	bodies   map[string]string
	statuses map[string]int
	failOn   map[string]error
	calls    []string
	headers  []http.Header
}

func newScriptedDoer() *scriptedDoer {
	return &scriptedDoer{
		bodies:   make(map[string]string),
		statuses: make(map[string]int),
		failOn:   make(map[string]error),
	}
}

func (d *scriptedDoer) Do(req *http.Request) (*http.Response, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	u := req.URL.String()
	d.calls = append(d.calls, u)
	d.headers = append(d.headers, req.Header.Clone())

	if err, ok := d.failOn[u]; ok {
		return nil, err
	}
	body, ok := d.bodies[u]
	if !ok {
		return nil, fmt.Errorf("unexpected request %s", u)
	}
	status := http.StatusOK
	if s, ok := d.statuses[u]; ok {
		status = s
	}
	return &http.Response{
		StatusCode: status,
		Status:     fmt.Sprintf("%d %s", status, http.StatusText(status)),
		Header:     http.Header{"Content-Type": {"application/json"}},
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}, nil
}

func (d *scriptedDoer) Calls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.calls...)
}

// linkedChain registers n pages where page i links to page i+1.
func linkedChain(d *scriptedDoer, base string, n int) []string {
	urls := make([]string, n)
	for i := range urls {
		urls[i] = fmt.Sprintf("%s?page=%d", base, i+1)
	}
	for i, u := range urls {
		next := "null"
		if i+1 < n {
			next = fmt.Sprintf("%q", urls[i+1])
		}
		d.bodies[u] = fmt.Sprintf(`{"values": [{"id": %d}], "next": %s}`, i+1, next)
	}
	return urls
}

func collect(t *testing.T, f *Fetcher) ([]Page, error) {
	t.Helper()
	var pages []Page
	for page, err := range f.All(context.Background()) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func TestNewFetcher_Validation(t *testing.T) {
	d := newScriptedDoer()

	tests := []struct {
		name string
		doer Doer
		src  PageSource
	}{
		{"nil doer", nil, PageSource{URL: "https://x.test/a", Cursor: AbsoluteLink("next")}},
		{"empty url", d, PageSource{Cursor: AbsoluteLink("next")}},
		{"non http url", d, PageSource{URL: "ftp://x.test/a", Cursor: AbsoluteLink("next")}},
		{"missing cursor", d, PageSource{URL: "https://x.test/a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := NewFetcher(tt.doer, tt.src)
			assert.Error(t, err)
			assert.Nil(t, f)
		})
	}
}

func TestFetcher_TerminatesAfterChain(t *testing.T) {
	for n := 1; n <= 6; n++ {
		t.Run(fmt.Sprintf("%d_pages", n), func(t *testing.T) {
			d := newScriptedDoer()
			urls := linkedChain(d, "https://api.test/list", n)

			f, err := NewFetcher(d, PageSource{URL: urls[0], Cursor: AbsoluteLink("next")})
			require.NoError(t, err)

			pages, err := collect(t, f)
			require.NoError(t, err)
			assert.Len(t, pages, n)
			assert.Equal(t, urls, d.Calls())
			assert.Equal(t, StateDone, f.State())
			assert.Equal(t, n, f.Pages())

			_, err = f.Next(context.Background())
			assert.ErrorIs(t, err, ErrDone)
			assert.Len(t, d.Calls(), n, "no request after DONE")
		})
	}
}

func TestFetcher_FieldMissingTerminates(t *testing.T) {
	d := newScriptedDoer()
	d.bodies["https://api.test/list"] = `{"values": [{"id": 1}]}`

	f, err := NewFetcher(d, PageSource{URL: "https://api.test/list", Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	pages, err := collect(t, f)
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestFetcher_AbsoluteLinkRoundTrip(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetLinkedPages("/2.0/repositories/acme", "next", "values", [][]map[string]any{
		{{"slug": "p0"}},
		{{"slug": "p1"}},
		{{"slug": "p2"}},
	})

	f, err := NewFetcher(mock.Client(), PageSource{
		URL:    mock.URL() + "/2.0/repositories/acme",
		Cursor: AbsoluteLink("next"),
	})
	require.NoError(t, err)

	pages, err := collect(t, f)
	require.NoError(t, err)
	require.Len(t, pages, 3)

	for i, page := range pages {
		items, ok := page.Items("values")
		require.True(t, ok)
		require.Len(t, items, 1)
		assert.Equal(t, fmt.Sprintf("p%d", i), items[0]["slug"])
	}
	assert.Equal(t, []string{
		"/2.0/repositories/acme",
		"/2.0/repositories/acme?page=2",
		"/2.0/repositories/acme?page=3",
	}, mock.RequestURIs())
}

func TestFetcher_TokenModeReconstruction(t *testing.T) {
	d := newScriptedDoer()
	first := "https://api.example.com/items?pagelen=10"
	second := "https://api.example.com/items?pagelen=10&page-token=abc"
	d.bodies[first] = `{"items": [{"name": "A"}], "next_page_token": "abc"}`
	d.bodies[second] = `{"items": [{"name": "B"}], "next_page_token": null}`

	f, err := NewFetcher(d, PageSource{URL: first, Cursor: TokenAppend("next_page_token", "page-token")})
	require.NoError(t, err)

	pages, err := collect(t, f)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, []string{first, second}, d.Calls())
}

func TestFetcher_TokenModeAgainstServer(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetTokenPages("/api/v2/project/gh/acme/web/envvar", "next_page_token", "page-token", "items",
		[][]map[string]any{{{"name": "A"}}, {{"name": "B"}}, {{"name": "C"}}})

	var names []any
	err := ForEachItem(context.Background(), mock.Client(), PageSource{
		URL:    mock.URL() + "/api/v2/project/gh/acme/web/envvar",
		Cursor: TokenAppend("next_page_token", "page-token"),
	}, "items", func(item map[string]any) error {
		names = append(names, item["name"])
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, []any{"A", "B", "C"}, names)
	assert.Equal(t, []string{
		"/api/v2/project/gh/acme/web/envvar",
		"/api/v2/project/gh/acme/web/envvar?page-token=tok-2",
		"/api/v2/project/gh/acme/web/envvar?page-token=tok-3",
	}, mock.RequestURIs())
}

func TestFetcher_EmptyPageWithCursorContinues(t *testing.T) {
	d := newScriptedDoer()
	d.bodies["https://api.test/l"] = `{"values": [], "next": "https://api.test/l?page=2"}`
	d.bodies["https://api.test/l?page=2"] = `{"values": [], "next": "https://api.test/l?page=3"}`
	d.bodies["https://api.test/l?page=3"] = `{"values": [{"id": 3}], "next": null}`

	var ids []any
	err := ForEachItem(context.Background(), d, PageSource{URL: "https://api.test/l", Cursor: AbsoluteLink("next")},
		"values", func(item map[string]any) error {
			ids = append(ids, item["id"])
			return nil
		})
	require.NoError(t, err)
	assert.Len(t, d.Calls(), 3)
	require.Len(t, ids, 1)
	assert.Equal(t, "3", fmt.Sprint(ids[0]))
}

func TestFetcher_TransportFailureMidStream(t *testing.T) {
	d := newScriptedDoer()
	urls := linkedChain(d, "https://api.test/list", 4)
	d.failOn[urls[2]] = errors.New("connection refused")

	f, err := NewFetcher(d, PageSource{URL: urls[0], Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	pages, err := collect(t, f)
	require.Error(t, err)
	assert.Len(t, pages, 2)
	assert.ErrorIs(t, err, ErrTransport)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, urls[2], fe.URL)
	assert.Equal(t, KindTransport, fe.Kind)
	assert.Contains(t, err.Error(), "connection refused")

	assert.Equal(t, urls[:3], d.Calls(), "page after the failure must never be requested")
	assert.Equal(t, StateDone, f.State())

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrDone)
	assert.Len(t, d.Calls(), 3)
}

func TestFetcher_DecodeError(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"html body", "<html>maintenance</html>"},
		{"json array", `[{"id": 1}]`},
		{"json null", "null"},
		{"trailing data", `{"values": []} {"values": []}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newScriptedDoer()
			d.bodies["https://api.test/l"] = tt.body

			f, err := NewFetcher(d, PageSource{URL: "https://api.test/l", Cursor: AbsoluteLink("next")})
			require.NoError(t, err)

			page, err := f.Next(context.Background())
			assert.Nil(t, page, "partial page must be discarded")
			assert.ErrorIs(t, err, ErrDecode)
			assert.Equal(t, StateDone, f.State())
		})
	}
}

func TestFetcher_StatusError(t *testing.T) {
	d := newScriptedDoer()
	d.bodies["https://api.test/l"] = `{"type": "error", "error": {"message": "Access denied"}}`
	d.statuses["https://api.test/l"] = http.StatusForbidden

	f, err := NewFetcher(d, PageSource{URL: "https://api.test/l", Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	_, err = f.Next(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrStatus)

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, http.StatusForbidden, fe.StatusCode)
	assert.Contains(t, fe.Error(), "Access denied")
}

type statusErr struct{ code int }

func (e statusErr) Error() string   { return fmt.Sprintf("status %d after retries", e.code) }
func (e statusErr) HTTPStatus() int { return e.code }

func TestFetcher_DoerStatusErrorClassified(t *testing.T) {
	d := newScriptedDoer()
	d.failOn["https://api.test/l"] = fmt.Errorf("retry exhausted: %w", statusErr{code: 503})

	f, err := NewFetcher(d, PageSource{URL: "https://api.test/l", Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	_, err = f.Next(context.Background())
	assert.ErrorIs(t, err, ErrStatus)
	assert.NotErrorIs(t, err, ErrTransport)
}

func TestFetcher_MalformedCursorEndsListing(t *testing.T) {
	d := newScriptedDoer()
	d.bodies["https://api.test/l"] = `{"items": [{"name": "A"}], "next_page_token": 12345}`

	f, err := NewFetcher(d, PageSource{URL: "https://api.test/l", Cursor: TokenAppend("next_page_token", "page-token")})
	require.NoError(t, err)

	pages, err := collect(t, f)
	require.NoError(t, err, "malformed cursor is not fatal")
	assert.Len(t, pages, 1)
	assert.Len(t, d.Calls(), 1)
}

func TestFetcher_SendsSourceHeaders(t *testing.T) {
	d := newScriptedDoer()
	urls := linkedChain(d, "https://api.test/list", 2)

	src := PageSource{
		URL:    urls[0],
		Header: http.Header{"Circle-Token": {"secret"}},
		Cursor: AbsoluteLink("next"),
	}
	f, err := NewFetcher(d, src)
	require.NoError(t, err)

	_, err = collect(t, f)
	require.NoError(t, err)

	require.Len(t, d.headers, 2)
	for _, h := range d.headers {
		assert.Equal(t, "secret", h.Get("Circle-Token"))
		assert.Equal(t, "application/json", h.Get("Accept"))
	}
}

func TestFetcher_FreshInstancesAreIdentical(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()

	mock.SetLinkedPages("/list", "next", "values", [][]map[string]any{
		{{"id": 1}, {"id": 2}},
		{},
		{{"id": 3, "nested": map[string]any{"a": "b"}}},
	})

	src := PageSource{URL: mock.URL() + "/list", Cursor: AbsoluteLink("next")}

	run := func() []Page {
		f, err := NewFetcher(mock.Client(), src)
		require.NoError(t, err)
		pages, err := collect(t, f)
		require.NoError(t, err)
		return pages
	}

	first := run()
	second := run()
	assert.Equal(t, first, second)
	assert.Equal(t, 6, mock.GetRequestCount(), "no caching between runs")
}

func TestFetcher_ConsumerStopsEarly(t *testing.T) {
	d := newScriptedDoer()
	urls := linkedChain(d, "https://api.test/list", 5)

	f, err := NewFetcher(d, PageSource{URL: urls[0], Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	for range f.All(context.Background()) {
		break
	}
	assert.Len(t, d.Calls(), 1, "no read-ahead after the consumer stops")
	assert.Equal(t, StateFetching, f.State())
}

func TestFetcher_ContextCancelled(t *testing.T) {
	mock := testutil.NewMockAPI()
	defer mock.Close()
	mock.SetResponse("/list", testutil.NewJSONResponse(`{"values": []}`))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f, err := NewFetcher(mock.Client(), PageSource{URL: mock.URL() + "/list", Cursor: AbsoluteLink("next")})
	require.NoError(t, err)

	_, err = f.Next(ctx)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestForEachItem_SkipsPagesWithoutItemField(t *testing.T) {
	d := newScriptedDoer()
	d.bodies["https://api.test/l"] = `{"unexpected": true, "next": "https://api.test/l?page=2"}`
	d.bodies["https://api.test/l?page=2"] = `{"values": [{"id": "b"}]}`

	var ids []any
	err := ForEachItem(context.Background(), d, PageSource{URL: "https://api.test/l", Cursor: AbsoluteLink("next")},
		"values", func(item map[string]any) error {
			ids = append(ids, item["id"])
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []any{"b"}, ids)
}

func TestForEachItem_CallbackErrorStops(t *testing.T) {
	d := newScriptedDoer()
	urls := linkedChain(d, "https://api.test/list", 3)
	stop := errors.New("stop")

	err := ForEachItem(context.Background(), d, PageSource{URL: urls[0], Cursor: AbsoluteLink("next")},
		"values", func(map[string]any) error { return stop })
	assert.ErrorIs(t, err, stop)
	assert.Len(t, d.Calls(), 1)
}

func TestPage_Items(t *testing.T) {
	page := Page{
		"values": []any{map[string]any{"id": "a"}, "not-an-object", map[string]any{"id": "b"}},
		"count":  "2",
	}

	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = prev })

	items, ok := page.Items("values")
	assert.True(t, ok)
	assert.Len(t, items, 2)
	assert.Contains(t, buf.String(), `"dropped":1`)
	assert.Contains(t, buf.String(), `"field":"values"`)

	buf.Reset()
	_, ok = page.Items("count")
	assert.False(t, ok)

	_, ok = page.Items("missing")
	assert.False(t, ok)
}

func TestFetchError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *FetchError
		want string
	}{
		{
			name: "status",
			err:  &FetchError{URL: "https://x.test", Kind: KindStatus, StatusCode: 404, Err: errors.New("404 Not Found")},
			want: "fetch https://x.test: status 404: 404 Not Found",
		},
		{
			name: "transport",
			err:  &FetchError{URL: "https://x.test", Kind: KindTransport, Err: errors.New("dial tcp: refused")},
			want: "fetch https://x.test: transport error: dial tcp: refused",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestFetchError_MapsStatusToSentinels(t *testing.T) {
	tests := []struct {
		status int
		target error
	}{
		{http.StatusUnauthorized, apierrors.ErrUnauthorized},
		{http.StatusForbidden, apierrors.ErrUnauthorized},
		{http.StatusNotFound, apierrors.ErrNotFound},
		{http.StatusTooManyRequests, apierrors.ErrRateLimited},
	}

	for _, tt := range tests {
		err := &FetchError{URL: "https://api.test", Kind: KindStatus, StatusCode: tt.status, Err: errors.New("x")}
		assert.ErrorIs(t, err, tt.target, "status %d", tt.status)
	}

	plain := &FetchError{URL: "https://api.test", Kind: KindStatus, StatusCode: http.StatusInternalServerError, Err: errors.New("x")}
	assert.NotErrorIs(t, plain, apierrors.ErrNotFound)
}

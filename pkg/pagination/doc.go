// Package pagination walks cursor-paginated JSON REST listings.
//
// A PageSource describes one listing: the first page URL (with any static
// query parameters already applied), the request headers for the session,
// and a CursorRule telling the Fetcher where the next page is announced.
// Two cursor shapes are supported:
//
//   - AbsoluteLink: the page carries the full URL of the next page in a
//     field such as "next" (Bitbucket Cloud 2.0).
//   - TokenAppend: the page carries an opaque token in a field such as
//     "next_page_token"; the next URL is the first URL with the token added
//     as a query parameter (CircleCI v2 "page-token").
//
// A Fetcher is pull-based: every call to Next performs at most one blocking
// GET, in strict page order, and nothing runs between calls. It stops when
// the cursor field is missing, null or empty, or after the first failed
// request. Listing pages with zero items but a cursor keep the walk going.
//
// # Basic Usage
//
//	src := pagination.PageSource{
//		URL:    "https://api.bitbucket.org/2.0/repositories/acme",
//		Header: http.Header{"Authorization": {"Basic ..."}},
//		Cursor: pagination.AbsoluteLink("next"),
//	}
//
//	f, err := pagination.NewFetcher(httpClient, src)
//	if err != nil {
//		return err
//	}
//	for page, err := range f.All(ctx) {
//		if err != nil {
//			return err
//		}
//		items, _ := page.Items("values")
//		...
//	}
//
// # Metrics
//
//   - apictl_pages_fetched_total{source} - pages decoded and yielded
//   - apictl_page_fetch_errors_total{kind} - failed page requests by kind
//   - apictl_cursor_errors_total - cursor fields holding a non-string value
package pagination

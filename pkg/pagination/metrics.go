package pagination

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	pagesFetchedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_pages_fetched_total",
		Help: "Total pages decoded and yielded by source label",
	}, []string{"source"})

	pageFetchErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "apictl_page_fetch_errors_total",
		Help: "Total failed page requests by error kind",
	}, []string{"kind"})

	cursorErrorsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "apictl_cursor_errors_total",
		Help: "Total cursor fields that held a non-string value",
	})
)

package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/stretchr/testify/require"
)

func TestRefreshAndScrapeContainsExpectedSeries(t *testing.T) {
	m := New()
	m.Refresh(Snapshot{
		TotalAnchored:       10,
		TotalFailed:         2,
		TotalEventsAnchored: 500,
		Errors:              ErrorCategoryCounts{L2Connection: 3},
	})

	srv := httptest.NewServer(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := httpGet(srv.URL)
	require.NoError(t, err)
	require.Contains(t, resp, `anchor_batches_total{status="success"} 10`)
	require.Contains(t, resp, `anchor_batches_total{status="failed"} 2`)
	require.Contains(t, resp, "anchor_events_total 500")
	require.Contains(t, resp, `anchor_errors_total{category="l2_connection"} 3`)
	require.Contains(t, resp, "# HELP")
	require.Contains(t, resp, "# TYPE")
}

func TestSuccessRateDefaultsToOne(t *testing.T) {
	m := New()
	m.Refresh(Snapshot{})

	srv := httptest.NewServer(promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{}))
	defer srv.Close()

	resp, err := httpGet(srv.URL)
	require.NoError(t, err)
	require.Contains(t, resp, "anchor_success_rate 1")
}

func httpGet(url string) (string, error) {
	resp, err := http.Get(url)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

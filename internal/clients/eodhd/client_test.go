package eodhd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, opts ...ClientOption) *Client {
	base := []ClientOption{WithBaseURL(url), WithRateLimit(0)}
	return NewClient("test-key", append(base, opts...)...)
}

func TestGetRealTimeQuote_ParsesResponse(t *testing.T) {
	ts := int64(1711670340)
	mockResp := map[string]interface{}{
		"code":          "AAPL.US",
		"timestamp":     ts,
		"open":          158.10,
		"high":          161.50,
		"low":           157.80,
		"close":         160.00,
		"volume":        float64(5000000),
		"previousClose": 158.00,
		"change":        2.00,
		"change_p":      1.2658,
	}

	var capturedPath, capturedToken, capturedAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedPath = r.URL.Path
		capturedToken = r.URL.Query().Get("api_token")
		capturedAgent = r.UserAgent()
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(mockResp)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	quote, err := client.GetRealTimeQuote(context.Background(), "AAPL.US")
	require.NoError(t, err)

	assert.Equal(t, "/real-time/AAPL.US", capturedPath)
	assert.Equal(t, "test-key", capturedToken)
	assert.Equal(t, "folio/dev", capturedAgent)
	assert.Equal(t, "AAPL.US", quote.Symbol)
	assert.Equal(t, 160.00, quote.CurrentPrice)
	assert.Equal(t, 2.00, quote.DailyChange)
	assert.InDelta(t, 1.2658, quote.DailyChangePercent, 1e-9)
	assert.Equal(t, int64(5000000), quote.Volume)
	assert.Equal(t, 161.50, quote.High)
	assert.Equal(t, 157.80, quote.Low)
	assert.True(t, quote.Timestamp.Equal(time.Unix(ts, 0)))
}

func TestGetRealTimeQuote_NAFields(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"XYZ.US","timestamp":1711670340,"close":"NA","volume":"NA"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetRealTimeQuote(context.Background(), "XYZ.US")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoData))
}

func TestGetRealTimeQuote_DerivesChangeFromPreviousClose(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"code":"MSFT.US","close":"260","previousClose":"250","change":"NA","change_p":"NA"}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	quote, err := client.GetRealTimeQuote(context.Background(), "MSFT.US")
	require.NoError(t, err)

	assert.Equal(t, 260.0, quote.CurrentPrice)
	assert.InDelta(t, 10.0, quote.DailyChange, 1e-9)
	assert.InDelta(t, 4.0, quote.DailyChangePercent, 1e-9)
}

func TestGetEOD_AscendingAndTrimmed(t *testing.T) {
	var capturedOrder string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		capturedOrder = r.URL.Query().Get("order")
		// Deliberately out of order, with one malformed date
		w.Write([]byte(`[
			{"date":"2024-01-04","open":3,"high":3,"low":3,"close":3,"volume":300},
			{"date":"2024-01-02","open":1,"high":1,"low":1,"close":1,"volume":100},
			{"date":"bad","close":9},
			{"date":"2024-01-03","open":2,"high":2,"low":2,"close":2,"volume":200}
		]`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)

	bars, err := client.GetEOD(context.Background(), "AAPL.US", 0)
	require.NoError(t, err)
	require.Len(t, bars, 3)
	assert.Equal(t, "a", capturedOrder)
	assert.Equal(t, 1.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[2].Close)
	assert.Equal(t, int64(300), bars[2].Volume)

	bars, err = client.GetEOD(context.Background(), "AAPL.US", 2)
	require.NoError(t, err)
	require.Len(t, bars, 2)
	assert.Equal(t, 2.0, bars[0].Close)
	assert.Equal(t, 3.0, bars[1].Close)
}

func TestGetFundamentals_ParsesSectorAndYield(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/fundamentals/KO.US", r.URL.Path)
		w.Write([]byte(`{
			"General":{"Code":"KO","Name":"Coca-Cola","Sector":"Consumer Defensive","Industry":"Beverages"},
			"Highlights":{"DividendYield":0.031},
			"Technicals":{"Beta":"0.58"}
		}`))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	f, err := client.GetFundamentals(context.Background(), "KO.US")
	require.NoError(t, err)

	assert.Equal(t, "Consumer Defensive", f.Sector)
	assert.Equal(t, "Coca-Cola", f.Name)
	assert.InDelta(t, 0.031, f.DividendYield, 1e-12)
	assert.InDelta(t, 0.58, f.Beta, 1e-12)
}

func TestGet_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Ticker Not Found."))
	}))
	defer srv.Close()

	client := newTestClient(srv.URL)
	_, err := client.GetEOD(context.Background(), "NOPE.US", 0)
	require.Error(t, err)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, "/eod/NOPE.US", apiErr.Endpoint)
}

func TestBreaker_OpensOnServerErrors(t *testing.T) {
	var hits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	var failures int32
	client := newTestClient(srv.URL,
		WithBreaker(2, time.Hour),
		WithFailureHook(func(string) { atomic.AddInt32(&failures, 1) }),
	)

	for i := 0; i < 2; i++ {
		_, err := client.GetRealTimeQuote(context.Background(), "AAPL.US")
		require.Error(t, err)
	}
	assert.Equal(t, "open", client.BreakerState())

	_, err := client.GetRealTimeQuote(context.Background(), "AAPL.US")
	require.Error(t, err)
	assert.True(t, errors.Is(err, gobreaker.ErrOpenState))

	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "open breaker must not reach the upstream")
	assert.Equal(t, int32(3), atomic.LoadInt32(&failures))
}

func TestBreaker_IgnoresNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	client := newTestClient(srv.URL, WithBreaker(1, time.Hour))
	for i := 0; i < 3; i++ {
		_, _ = client.GetFundamentals(context.Background(), "NOPE.US")
	}
	assert.Equal(t, "closed", client.BreakerState())
}

func TestWithRateLimit_SpacesRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	client := NewClient("k", WithBaseURL(srv.URL), WithRateLimit(20))

	start := time.Now()
	for i := 0; i < 3; i++ {
		_, err := client.GetEOD(context.Background(), "AAPL.US", 0)
		require.NoError(t, err)
	}
	// burst 1 at 20/s: the 2nd and 3rd calls each wait ~50ms
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

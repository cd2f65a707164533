package reportsapi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/jengzang/civic-map/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(srv *httptest.Server, retries uint64) *Client {
	c := NewClient(Config{BaseURL: srv.URL + "/api/", Token: "secret", MaxRetries: retries}, srv.Client(), logging.NewNop())
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestFetch_BareArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/reports", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		w.Write([]byte(`[{"_id":"a","category":"pothole","location":{"lat":23.03,"lng":72.57},"upvoteCount":5}]`))
	}))
	defer srv.Close()

	reports, err := newTestClient(srv, 0).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "pothole", reports[0].Category)
	assert.Equal(t, 5, reports[0].UpvoteCount)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"data":[{"id":"b","location":{"lat":"23.1","lng":"72.6"}}]}`))
	}))
	defer srv.Close()

	reports, err := newTestClient(srv, 5).Fetch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	require.Len(t, reports, 1)
	assert.InDelta(t, 23.1, reports[0].Location.Lat, 1e-9)
}

func TestFetch_ClientErrorIsPermanent(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 5).Fetch(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUpstream)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_GivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := newTestClient(srv, 2).Fetch(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name string
		body string
		want int
		err  bool
	}{
		{"array", `[{"id":"a"},{"id":"b"}]`, 2, false},
		{"data envelope", `{"data":[{"id":"a"}]}`, 1, false},
		{"reports envelope", `{"reports":[{"id":"a"}]}`, 1, false},
		{"empty envelope", `{}`, 0, false},
		{"garbage", `<html>`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Decode([]byte(tt.body))
			if tt.err {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

package httppool

import (
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAcquireReturnsPooledClient(t *testing.T) {
	pool := New(Options{Size: 3, ApiKey: "test-key"})
	require.Equal(t, 3, pool.Size())

	for i := 0; i < 10; i++ {
		require.NotNil(t, pool.Acquire())
	}
}

func TestClientCarriesCredentialHeader(t *testing.T) {
	var gotKey atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey.Store(r.Header.Get("x-nxopen-api-key"))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pool := New(Options{Size: 1, ApiKey: "secret"})
	res, err := pool.Acquire().R().Get(server.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.Equal(t, "secret", gotKey.Load())
}

func TestRetriesOnServerError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	pool := New(Options{Size: 1, Timeout: time.Second * 5})
	res, err := pool.Acquire().R().Get(server.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode())
	require.EqualValues(t, 3, calls.Load())
}

func TestDoesNotRetryClientError(t *testing.T) {
	var calls atomic.Int64
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	pool := New(Options{Size: 1})
	res, err := pool.Acquire().R().Get(server.URL)
	require.NoError(t, err)
	require.Equal(t, http.StatusNotFound, res.StatusCode())
	require.EqualValues(t, 1, calls.Load())
}

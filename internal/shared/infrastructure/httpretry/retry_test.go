package httpretry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	shareddomain "github.com/goalpost-app/goalpost/internal/shared/domain"
)

func instantPolicy() Policy {
	p := DefaultPolicy()
	p.Sleep = func(time.Duration) {}
	p.RandInt64 = func(int64) int64 { return 0 }
	return p
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	statuses := []int{503, 503, 200}
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(statuses[calls])
		calls++
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, 3, calls)
}

func TestDo_ExhaustsAttempts(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, 5, calls)
}

func TestDo_NonRetryableStatusReturnsImmediately(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestDo_HonorsRetryAfterWithoutConsumingBackoff(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Retry-After", "2")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	var slept []time.Duration
	p := instantPolicy()
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	client := New(p, nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, slept, 1)
	assert.Equal(t, 2*time.Second, slept[0])
}

func TestDo_BackoffDoublesWithCap(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	var slept []time.Duration
	p := instantPolicy()
	p.Sleep = func(d time.Duration) { slept = append(slept, d) }

	client := New(p, nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, []time.Duration{
		1 * time.Second,
		2 * time.Second,
		4 * time.Second,
		8 * time.Second,
	}, slept)
}

func TestDo_ReplaysBodyAcrossAttempts(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 64)
		n, _ := r.Body.Read(buf)
		bodies = append(bodies, string(buf[:n]))
		if len(bodies) < 2 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Post(context.Background(), server.URL, "tok", []byte(`{"a":1}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Len(t, bodies, 2)
	assert.Equal(t, `{"a":1}`, bodies[0])
	assert.Equal(t, `{"a":1}`, bodies[1])
}

func TestDo_SendsBearerToken(t *testing.T) {
	var auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Get(context.Background(), server.URL, "secret")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, "Bearer secret", auth)
}

func TestParseRetryAfter(t *testing.T) {
	assert.Equal(t, time.Duration(0), parseRetryAfter(""))
	assert.Equal(t, time.Duration(0), parseRetryAfter("soon"))
	assert.Equal(t, 7*time.Second, parseRetryAfter("7"))
}

func TestDo_RateLimitSurfacedWhenExhausted(t *testing.T) {
	var calls int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	client := New(instantPolicy(), nil)
	resp, err := client.Get(context.Background(), server.URL, "tok")
	require.Error(t, err)
	if resp != nil {
		defer resp.Body.Close()
	}

	var rateErr *shareddomain.RateLimitError
	assert.ErrorAs(t, err, &rateErr)
	assert.Equal(t, 5, calls)
}

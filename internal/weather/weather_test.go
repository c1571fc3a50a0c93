package weather

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/talgya/critterlife/internal/environment"
)

func testClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := NewClient("key", "Lisbon,PT")
	c.baseURL = srv.URL
	return c
}

func TestNilWithoutKey(t *testing.T) {
	assert.Nil(t, NewClient("", "anywhere"))
	assert.NoError(t, Follow(context.Background(), nil, nil, time.Second))
}

func TestFetchParsesAndCaches(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "Lisbon,PT", r.URL.Query().Get("q"))
		assert.Equal(t, "metric", r.URL.Query().Get("units"))
		fmt.Fprint(w, `{"main":{"temp":-3},"weather":[{"main":"Snow","description":"light snow"}],"wind":{"speed":2}}`)
	})

	cond, err := c.Fetch(context.Background())
	require.NoError(t, err)
	assert.True(t, cond.IsSnow)
	assert.Equal(t, "light snow", cond.Description)
	assert.Equal(t, environment.Snowy, ToMeadow(cond))

	_, err = c.Fetch(context.Background())
	require.NoError(t, err)
	assert.EqualValues(t, 1, hits.Load(), "second fetch is served from cache")
}

func TestFetchBacksOff(t *testing.T) {
	var hits atomic.Int32
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "nope", http.StatusUnauthorized)
	})
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, err := c.Fetch(context.Background())
	require.Error(t, err)
	_, err = c.Fetch(context.Background())
	assert.ErrorContains(t, err, "backoff")
	assert.EqualValues(t, 1, hits.Load())

	now = now.Add(2 * time.Minute)
	_, err = c.Fetch(context.Background())
	require.Error(t, err)
	assert.EqualValues(t, 2, hits.Load())
	assert.Equal(t, 2*time.Minute, c.failBackoff)
}

func TestToMeadow(t *testing.T) {
	assert.Equal(t, environment.Sunny, ToMeadow(nil))
	assert.Equal(t, environment.Sunny, ToMeadow(&Conditions{Temp: 22}))
	assert.Equal(t, environment.Cloudy, ToMeadow(&Conditions{IsCloudy: true}))
	assert.Equal(t, environment.Rainy, ToMeadow(&Conditions{IsRain: true}))
	assert.Equal(t, environment.Rainy, ToMeadow(&Conditions{IsStorm: true, Temp: 12}))
	assert.Equal(t, environment.Snowy, ToMeadow(&Conditions{IsStorm: true, Temp: -2}))
}

type requests struct {
	mu  sync.Mutex
	got []environment.Weather
}

func (r *requests) RequestWeather(w environment.Weather) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, w)
}

func TestFollowRequestsOnChange(t *testing.T) {
	c := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"main":{"temp":14},"weather":[{"main":"Rain","description":"moderate rain"}]}`)
	})
	ctx, cancel := context.WithCancel(context.Background())
	rec := &requests{}
	done := make(chan error, 1)
	go func() { done <- Follow(ctx, c, rec, 10*time.Millisecond) }()

	time.Sleep(60 * time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	rec.mu.Lock()
	defer rec.mu.Unlock()
	assert.Equal(t, []environment.Weather{environment.Rainy}, rec.got, "unchanged readings are not re-requested")
}

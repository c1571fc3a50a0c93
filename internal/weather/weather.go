// Package weather follows real-world conditions from OpenWeatherMap and
// steers the meadow's target weather toward them.
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/talgya/critterlife/internal/environment"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5/weather"

// Client fetches weather data from OpenWeatherMap.
type Client struct {
	apiKey   string
	location string
	baseURL  string
	client   *http.Client

	mu          sync.Mutex
	cached      *Conditions
	cachedAt    time.Time
	cacheTTL    time.Duration
	lastFailAt  time.Time
	failBackoff time.Duration
	now         func() time.Time
}

// NewClient creates a weather API client. Returns nil if apiKey is empty.
func NewClient(apiKey, location string) *Client {
	if apiKey == "" {
		return nil
	}
	if location == "" {
		location = "San Diego,US"
	}
	return &Client{
		apiKey:   apiKey,
		location: location,
		baseURL:  defaultBaseURL,
		client:   &http.Client{Timeout: 10 * time.Second},
		cacheTTL: 5 * time.Minute,
		now:      time.Now,
	}
}

// Conditions holds parsed weather data from the API.
type Conditions struct {
	Temp        float64 `json:"temp"` // Celsius
	Description string  `json:"description"`
	WindSpeed   float64 `json:"wind_speed"` // m/s
	IsStorm     bool    `json:"is_storm"`
	IsSnow      bool    `json:"is_snow"`
	IsRain      bool    `json:"is_rain"`
	IsCloudy    bool    `json:"is_cloudy"`
}

// Fetch retrieves current conditions, using the cache while it is fresh.
// After a failure it backs off, doubling up to ten minutes, and serves the
// last good reading if there is one.
func (c *Client) Fetch(ctx context.Context) (*Conditions, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if c.cached != nil && now.Sub(c.cachedAt) < c.cacheTTL {
		return c.cached, nil
	}
	if c.failBackoff > 0 && now.Sub(c.lastFailAt) < c.failBackoff {
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, fmt.Errorf("weather API backoff (%s remaining)", c.failBackoff-now.Sub(c.lastFailAt))
	}

	conditions, err := c.fetchFromAPI(ctx)
	if err != nil {
		c.lastFailAt = now
		if c.failBackoff == 0 {
			c.failBackoff = time.Minute
		} else if c.failBackoff < 10*time.Minute {
			c.failBackoff *= 2
		}
		if c.cached != nil {
			return c.cached, nil
		}
		return nil, err
	}

	c.cached = conditions
	c.cachedAt = now
	c.failBackoff = 0
	return conditions, nil
}

func (c *Client) fetchFromAPI(ctx context.Context) (*Conditions, error) {
	apiURL := fmt.Sprintf("%s?q=%s&appid=%s&units=metric",
		c.baseURL, url.QueryEscape(c.location), url.QueryEscape(c.apiKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("weather API call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("read weather response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("weather API error %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var body owmResponse
	if err := json.Unmarshal(raw, &body); err != nil {
		return nil, fmt.Errorf("parse weather: %w", err)
	}
	cond := body.conditions()
	slog.Debug("weather fetched", "location", c.location, "temp", cond.Temp, "desc", cond.Description)
	return cond, nil
}

// owmResponse is the subset of the current-weather payload we read.
type owmResponse struct {
	Main struct {
		Temp float64 `json:"temp"`
	} `json:"main"`
	Weather []struct {
		Main        string `json:"main"`
		Description string `json:"description"`
	} `json:"weather"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
}

func (r owmResponse) conditions() *Conditions {
	out := &Conditions{Temp: r.Main.Temp, WindSpeed: r.Wind.Speed}
	if len(r.Weather) == 0 {
		return out
	}
	out.Description = r.Weather[0].Description
	switch strings.ToLower(r.Weather[0].Main) {
	case "rain", "drizzle":
		out.IsRain = true
	case "snow":
		out.IsSnow = true
	case "thunderstorm":
		out.IsStorm = true
	case "clouds", "mist", "fog", "haze", "smoke":
		out.IsCloudy = true
	}
	if out.WindSpeed > 15 {
		out.IsStorm = true
	}
	return out
}

// ToMeadow maps real conditions onto the meadow's four skies. Storms
// count as rain, or snow when it is freezing.
func ToMeadow(c *Conditions) environment.Weather {
	switch {
	case c == nil:
		return environment.Sunny
	case c.IsSnow, c.IsStorm && c.Temp <= 0:
		return environment.Snowy
	case c.IsRain, c.IsStorm:
		return environment.Rainy
	case c.IsCloudy:
		return environment.Cloudy
	default:
		return environment.Sunny
	}
}

// Requester accepts weather targets. world.Store satisfies it.
type Requester interface {
	RequestWeather(target environment.Weather)
}

// Follow polls the client every interval and requests the mapped weather
// whenever it changes. It returns when ctx ends. A nil client returns
// immediately.
func Follow(ctx context.Context, c *Client, into Requester, interval time.Duration) error {
	if c == nil {
		return nil
	}
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	last := environment.Weather(255)
	poll := func() {
		cond, err := c.Fetch(ctx)
		if err != nil {
			slog.Warn("weather feed unavailable", "error", err)
			return
		}
		if target := ToMeadow(cond); target != last {
			slog.Info("weather feed", "location", c.location, "conditions", cond.Description, "target", target)
			into.RequestWeather(target)
			last = target
		}
	}

	poll()
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			poll()
		}
	}
}

// Package usgs provides a client for the USGS fdsnws earthquake feed.
package usgs

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/user/quakebot/internal/storage"
)

// Query holds the fixed feed query parameters.
type Query struct {
	Latitude     float64
	Longitude    float64
	MaxRadiusKM  int
	MinMagnitude float64
}

// Client fetches and normalizes events from the USGS feed.
type Client struct {
	baseURL string
	query   Query
	http    *http.Client
}

// NewClient creates a feed client for the given endpoint and query.
func NewClient(baseURL string, query Query) *Client {
	return &Client{
		baseURL: baseURL,
		query:   query,
		http:    &http.Client{Timeout: 30 * time.Second},
	}
}

// featureCollection mirrors the subset of the GeoJSON response we consume.
type featureCollection struct {
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			Place string  `json:"place"`
			Mag   float64 `json:"mag"`
			Time  int64   `json:"time"` // epoch milliseconds
			URL   string  `json:"url"`
		} `json:"properties"`
	} `json:"features"`
}

// Fetch queries the feed and returns the normalized events. A transport or
// decode failure is returned as an error, distinct from a legitimately
// empty feed.
func (c *Client) Fetch(ctx context.Context) ([]storage.Earthquake, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build feed request: %w", err)
	}

	params := url.Values{}
	params.Set("format", "geojson")
	params.Set("latitude", strconv.FormatFloat(c.query.Latitude, 'f', -1, 64))
	params.Set("longitude", strconv.FormatFloat(c.query.Longitude, 'f', -1, 64))
	params.Set("maxradiuskm", strconv.Itoa(c.query.MaxRadiusKM))
	if c.query.MinMagnitude > 0 {
		params.Set("minmagnitude", strconv.FormatFloat(c.query.MinMagnitude, 'f', -1, 64))
	}
	params.Set("orderby", "time")
	req.URL.RawQuery = params.Encode()

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}

	var fc featureCollection
	if err := json.NewDecoder(resp.Body).Decode(&fc); err != nil {
		return nil, fmt.Errorf("failed to decode feed response: %w", err)
	}

	quakes := make([]storage.Earthquake, 0, len(fc.Features))
	for _, f := range fc.Features {
		if f.ID == "" {
			continue
		}
		quakes = append(quakes, storage.Earthquake{
			ID:        f.ID,
			Location:  f.Properties.Place,
			Magnitude: f.Properties.Mag,
			EventTime: time.UnixMilli(f.Properties.Time).UTC(),
			URL:       f.Properties.URL,
		})
	}
	return quakes, nil
}

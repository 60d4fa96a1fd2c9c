package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
)

const defaultBaseURL = "https://maps.googleapis.com"

// Client wraps the Google reverse-geocoding endpoint. Every failure mode
// collapses to "no address": errors are logged here and never returned.
type Client struct {
	hc   *http.Client
	key  string
	base string
	log  *zap.SugaredLogger
}

func NewClient(key string, log *zap.SugaredLogger) *Client {
	return &Client{
		hc:   &http.Client{Timeout: 10 * time.Second},
		key:  key,
		base: defaultBaseURL,
		log:  log,
	}
}

type geocodeResponse struct {
	Results []struct {
		FormattedAddress string `json:"formatted_address"`
	} `json:"results"`
	Status string `json:"status"`
}

// ReverseGeocode resolves coordinates to the first formatted address, or
// ("", false) when no result is available for any reason.
func (c *Client) ReverseGeocode(ctx context.Context, lat, lng float64) (string, bool) {
	q := url.Values{}
	q.Set("latlng", fmt.Sprintf("%f,%f", lat, lng))
	q.Set("key", c.key)
	u := c.base + "/maps/api/geocode/json?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		c.log.Warnw("geocode request build failed", "err", err)
		return "", false
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		c.log.Warnw("geocode call failed", "err", err)
		return "", false
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warnw("geocode non-200", "status", resp.StatusCode)
		return "", false
	}

	var out geocodeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.log.Warnw("geocode decode failed", "err", err)
		return "", false
	}
	if len(out.Results) == 0 {
		return "", false
	}
	return out.Results[0].FormattedAddress, true
}

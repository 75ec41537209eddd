/*
	Timelinize
	Copyright (c) 2013 Matthew Holt

	This program is free software: you can redistribute it and/or modify
	it under the terms of the GNU Affero General Public License as published
	by the Free Software Foundation, either version 3 of the License, or
	(at your option) any later version.

	This program is distributed in the hope that it will be useful,
	but WITHOUT ANY WARRANTY; without even the implied warranty of
	MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
	GNU Affero General Public License for more details.

	You should have received a copy of the GNU Affero General Public License
	along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/

// Package googlemaps is a small client for the Google Maps Platform web
// services used while importing: the Time Zone API and reverse geocoding.
//
// Transient failures (transport errors and 5xx answers) are retried by the
// client itself, a few times. Callers like the importer never retry: a
// failed call only costs them the field it would have filled.
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"go.uber.org/zap"
)

// ErrNoResults is returned when the service answered but knows nothing
// about the requested location (status ZERO_RESULTS).
var ErrNoResults = errors.New("no results")

// DefaultBaseURL is the root of the Maps web service endpoints.
const DefaultBaseURL = "https://maps.googleapis.com/maps/api"

// Client calls the Maps web services with an API key.
type Client struct {
	APIKey     string
	HTTPClient *http.Client

	// Defaults to DefaultBaseURL.
	BaseURL string

	Logger *zap.Logger
}

// NewClient returns a client whose requests are rate limited by rl until
// ctx is done.
func NewClient(ctx context.Context, apiKey string, rl RateLimit) *Client {
	return &Client{
		APIKey: apiKey,
		HTTPClient: &http.Client{
			Transport: NewRateLimitedRoundTripper(ctx, http.DefaultTransport, rl),
			Timeout:   30 * time.Second,
		},
	}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return catalog.Log.Named("googlemaps")
}

// apiResponse holds the fields every Maps web service response has.
type apiResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message,omitempty"`
}

func (r apiResponse) err() error {
	switch r.Status {
	case "OK":
		return nil
	case "ZERO_RESULTS":
		return ErrNoResults
	}
	if r.ErrorMessage != "" {
		return fmt.Errorf("bad response status %s: %s", r.Status, r.ErrorMessage)
	}
	return fmt.Errorf("bad response status %s", r.Status)
}

// apiRequestWithRetry performs a GET of endpoint with the query qs and the
// API key, and decodes the JSON response into decodeInto. Transport errors
// and server errors are retried a few times.
func (c *Client) apiRequestWithRetry(ctx context.Context, endpoint string, qs url.Values, decodeInto any) error {
	const maxTries = 3
	const wait = 2 * time.Second

	base := c.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	qs.Set("key", c.APIKey)
	u := strings.TrimSuffix(base, "/") + "/" + endpoint + "?" + qs.Encode()

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	var err error
	for i := range maxTries {
		if i > 0 {
			c.logger().Warn("maps API request failed; waiting and retrying",
				zap.String("endpoint", endpoint),
				zap.Int("attempt", i),
				zap.Error(err))
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		var retry bool
		retry, err = c.doRequest(ctx, client, u, decodeInto)
		if err == nil || !retry {
			return err
		}
	}
	return err
}

func (c *Client) doRequest(ctx context.Context, client *http.Client, u string, decodeInto any) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return false, fmt.Errorf("creating request: %w", err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return ctx.Err() == nil, fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		return true, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(decodeInto); err != nil {
		return false, fmt.Errorf("decoding response body: %w", err)
	}
	return false, nil
}

// latLng formats a location as the services expect: "lat,lng".
func latLng(loc catalog.Location) string {
	return fmt.Sprintf("%v,%v", loc.Latitude, loc.Longitude)
}

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

package googlemaps

import (
	"context"
	"net/http"
	"time"
)

// RateLimit describes a rate limit.
type RateLimit struct {
	RequestsPerHour int `json:"requests_per_hour,omitempty"`
	BurstSize       int `json:"burst_size,omitempty"`
}

// NewRateLimitedRoundTripper adds rate limiting to rt based on the rate
// limiting policy. A zero RequestsPerHour means no limit. The bucket stops
// refilling when ctx is done.
func NewRateLimitedRoundTripper(ctx context.Context, rt http.RoundTripper, rl RateLimit) http.RoundTripper {
	if rl.RequestsPerHour <= 0 {
		return rt
	}

	reqInterval := max(time.Hour/time.Duration(rl.RequestsPerHour), minInterval)

	token := make(chan struct{}, max(rl.BurstSize, 1))
	for range cap(token) {
		token <- struct{}{}
	}

	ticker := time.NewTicker(reqInterval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
			select {
			case token <- struct{}{}:
			default:
				// bucket is full
			}
		}
	}()

	return rateLimitedRoundTripper{
		RoundTripper: rt,
		token:        token,
	}
}

type rateLimitedRoundTripper struct {
	http.RoundTripper
	token <-chan struct{}
}

func (rt rateLimitedRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	select {
	case <-rt.token:
	case <-req.Context().Done():
		return nil, req.Context().Err()
	}
	return rt.RoundTripper.RoundTrip(req)
}

const minInterval = 100 * time.Millisecond

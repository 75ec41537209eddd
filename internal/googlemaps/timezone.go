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
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/timezone"
	"go.uber.org/zap"
)

// TimezoneInfo is the answer of the Time Zone API.
type TimezoneInfo struct {
	DSTOffset  int    `json:"dstOffset"` // seconds
	RawOffset  int    `json:"rawOffset"` // seconds
	TimeZoneID string `json:"timeZoneId"`
	Name       string `json:"timeZoneName"`
}

// Offset is the total offset from UTC in effect.
func (tz TimezoneInfo) Offset() int { return tz.RawOffset + tz.DSTOffset }

type timezoneResponse struct {
	apiResponse
	TimezoneInfo
}

// Timezone returns the time zone in effect at loc at the instant at.
func (c *Client) Timezone(ctx context.Context, loc catalog.Location, at time.Time) (TimezoneInfo, error) {
	qs := url.Values{
		"location":  {latLng(loc)},
		"timestamp": {strconv.FormatInt(at.Unix(), 10)},
	}

	var resp timezoneResponse
	if err := c.apiRequestWithRetry(ctx, "timezone/json", qs, &resp); err != nil {
		return TimezoneInfo{}, fmt.Errorf("querying timezone of %s: %w", loc, err)
	}
	if err := resp.err(); err != nil {
		return TimezoneInfo{}, fmt.Errorf("querying timezone of %s: %w", loc, err)
	}
	if resp.TimeZoneID == "" {
		return TimezoneInfo{}, fmt.Errorf("querying timezone of %s: response has no time zone ID", loc)
	}

	c.logger().Debug("looked up timezone",
		zap.Stringer("location", loc),
		zap.String("zone", resp.TimeZoneID),
		zap.Int("offset", resp.Offset()))

	return resp.TimezoneInfo, nil
}

// Lookup implements timezone.Lookup.
func (c *Client) Lookup(ctx context.Context, loc catalog.Location, approx time.Time) (timezone.Zone, error) {
	info, err := c.Timezone(ctx, loc, approx)
	if err != nil {
		return timezone.Zone{}, err
	}
	if _, err := catalog.NewExplicitTimezone(info.Offset()); err != nil {
		return timezone.Zone{}, fmt.Errorf("invalid offset %d + DST %d for %s: %w", info.RawOffset, info.DSTOffset, loc, err)
	}
	return timezone.Zone{Offset: info.Offset(), ID: info.TimeZoneID, Name: info.Name}, nil
}

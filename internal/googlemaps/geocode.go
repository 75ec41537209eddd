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
	"slices"
	"sort"

	"github.com/maruel/natural"
	"github.com/timelinize/mediaimport/catalog"
)

// Geocode is the result of reverse geocoding a location: a display
// address and the place names worth tagging.
type Geocode struct {
	Address string
	Names   []string // natural order, no duplicates
}

type geocodeResponse struct {
	apiResponse
	Results []geocodeResult `json:"results"`
}

type geocodeResult struct {
	AddressComponents []addressComponent `json:"address_components"`
	FormattedAddress  string             `json:"formatted_address"`
	PlaceID           string             `json:"place_id"`
	Types             []string           `json:"types"`
}

type addressComponent struct {
	LongName  string   `json:"long_name"`
	ShortName string   `json:"short_name"`
	Types     []string `json:"types"`
}

// Address component types that make useful tags.
var wantedTypes = []string{
	"country",
	"administrative_area_level_1",
	"administrative_area_level_2",
	"administrative_area_level_3",
	"colloquial_area",
	"locality",
	"neighborhood",
	"natural_feature",
	"park",
	"point_of_interest",
}

func hasType(types []string, want string) bool { return slices.Contains(types, want) }

func wanted(types []string) bool {
	return slices.ContainsFunc(types, func(t string) bool { return slices.Contains(wantedTypes, t) })
}

// ReverseGeocode returns the address of loc and the names of the places
// that contain it. The address is that of the first (most specific) result.
func (c *Client) ReverseGeocode(ctx context.Context, loc catalog.Location) (*Geocode, error) {
	var resp geocodeResponse
	if err := c.apiRequestWithRetry(ctx, "geocode/json", url.Values{"latlng": {latLng(loc)}}, &resp); err != nil {
		return nil, fmt.Errorf("reverse geocoding %s: %w", loc, err)
	}
	if err := resp.err(); err != nil {
		return nil, fmt.Errorf("reverse geocoding %s: %w", loc, err)
	}
	if len(resp.Results) == 0 {
		return nil, fmt.Errorf("reverse geocoding %s: %w", loc, ErrNoResults)
	}
	return summarizeGeocode(resp.Results), nil
}

func summarizeGeocode(results []geocodeResult) *Geocode {
	var country string
	for _, r := range results {
		if hasType(r.Types, "country") {
			country = r.FormattedAddress
		}
	}

	seen := make(map[string]struct{})
	for _, r := range results {
		if !wanted(r.Types) && !hasType(r.Types, "postal_code") && !hasType(r.Types, "street_address") {
			continue
		}
		for _, comp := range r.AddressComponents {
			if !wanted(comp.Types) {
				continue
			}
			name := comp.LongName
			// Australian level 2 areas are councils like "Brisbane City"
			if country == "Australia" && hasType(comp.Types, "administrative_area_level_2") {
				name = comp.ShortName
			}
			if name != "" {
				seen[name] = struct{}{}
			}
		}
	}

	geo := &Geocode{Address: results[0].FormattedAddress}
	for name := range seen {
		geo.Names = append(geo.Names, name)
	}
	sort.Slice(geo.Names, func(i, j int) bool { return natural.Less(geo.Names[i], geo.Names[j]) })
	return geo
}

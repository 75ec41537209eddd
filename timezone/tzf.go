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

package timezone

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
	_ "time/tzdata" // offline lookups must not depend on the host's zoneinfo

	"github.com/ringsaturn/tzf"
	"github.com/timelinize/mediaimport/catalog"
)

// ErrNoZone is returned when no timezone covers a location.
var ErrNoZone = errors.New("no timezone found for location")

// OfflineLookup finds timezones from the polygons bundled with tzf and
// computes offsets with the Go timezone database. It needs no network.
type OfflineLookup struct {
	once   sync.Once
	finder tzf.F
	err    error
}

func (ol *OfflineLookup) init() {
	ol.once.Do(func() {
		ol.finder, ol.err = tzf.NewDefaultFinder()
		if ol.err != nil {
			ol.err = fmt.Errorf("loading timezone polygons: %w", ol.err)
		}
	})
}

// Lookup implements Lookup.
func (ol *OfflineLookup) Lookup(ctx context.Context, loc catalog.Location, approx time.Time) (Zone, error) {
	if err := ctx.Err(); err != nil {
		return Zone{}, err
	}
	ol.init()
	if ol.err != nil {
		return Zone{}, ol.err
	}

	name := ol.finder.GetTimezoneName(loc.Longitude, loc.Latitude)
	if name == "" {
		return Zone{}, fmt.Errorf("%w: %s", ErrNoZone, loc)
	}
	tzLoc, err := time.LoadLocation(name)
	if err != nil {
		return Zone{}, fmt.Errorf("loading timezone %s: %w", name, err)
	}
	abbrev, offset := approx.In(tzLoc).Zone()
	return Zone{Offset: offset, ID: name, Name: abbrev}, nil
}

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

// Package timezone resolves the single best activity timestamp for a media
// file from the time sources found in it: a naive local wall clock, a
// UTC-anchored GPS time, and an optional location.
package timezone

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"go.uber.org/zap"
)

// Zone is the answer of a timezone lookup.
type Zone struct {
	Offset int    // seconds east of UTC, DST included
	ID     string // e.g. "Australia/Sydney"
	Name   string // e.g. "Australian Eastern Daylight Time"
}

// Location returns z as a fixed offset location.
func (z Zone) Location() *time.Location {
	name := z.ID
	if name == "" {
		name = z.Name
	}
	return time.FixedZone(name, z.Offset)
}

// Lookup finds the timezone in effect at a location around the given time.
type Lookup interface {
	Lookup(ctx context.Context, loc catalog.Location, approx time.Time) (Zone, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, loc catalog.Location, approx time.Time) (Zone, error)

// Lookup calls f.
func (f LookupFunc) Lookup(ctx context.Context, loc catalog.Location, approx time.Time) (Zone, error) {
	return f(ctx, loc, approx)
}

// Method records which step of the resolution produced a timestamp.
type Method int

const (
	MethodNone Method = iota
	MethodLookupGPS
	MethodLookupLocal
	MethodDerived
	MethodAssumed
)

func (m Method) String() string {
	switch m {
	case MethodLookupGPS:
		return "lookup(gps)"
	case MethodLookupLocal:
		return "lookup(local)"
	case MethodDerived:
		return "derived"
	case MethodAssumed:
		return "assumed"
	}
	return "none"
}

// Input holds the time sources of one file. Naive timestamps carry their
// wall clock in time.UTC; only the wall clock reading is meaningful.
type Input struct {
	Location *catalog.Location
	Local    *time.Time
	GPS      *time.Time
}

// Result is the outcome of a resolution. Warnings describe every fallback
// or failed step, whether or not a timestamp was produced.
type Result struct {
	Time     *time.Time
	Method   Method
	Warnings []string
}

// Resolver applies the resolution precedence. The zero value resolves
// without any lookup and without an assumed timezone.
type Resolver struct {
	// Optional lookup collaborator.
	Lookup Lookup

	// Applied to a naive local timestamp when nothing better is known.
	Assumed *catalog.ExplicitTimezone

	Logger *zap.Logger
}

// Resolve returns the best timestamp for in. The steps, in order:
//
//  1. location and GPS time, looked up: the GPS instant in the returned zone
//  2. location and local time, looked up: the local wall clock in the returned zone
//  3. local and GPS time: the zone is derived from their difference
//  4. local time under the assumed timezone, with a warning
//
// The lookup is called at most once: when it fails in step 1, step 2 is
// skipped and resolution continues with step 3.
func (r *Resolver) Resolve(ctx context.Context, in Input) Result {
	var res Result
	var lookup Lookup
	var assumed *catalog.ExplicitTimezone
	logger := catalog.Log.Named("timezone")
	if r != nil {
		lookup, assumed = r.Lookup, r.Assumed
		if r.Logger != nil {
			logger = r.Logger
		}
	}

	hasLoc := in.Location != nil
	lookupTried := false

	if lookup != nil && hasLoc && in.GPS != nil {
		lookupTried = true
		zone, err := lookup.Lookup(ctx, *in.Location, *in.GPS)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("timezone lookup for %s failed: %v", in.Location, err))
		} else {
			t := in.GPS.In(zone.Location())
			logger.Debug("resolved from gps time and location", zap.String("zone", zone.ID), zap.Time("time", t))
			res.Time, res.Method = &t, MethodLookupGPS
			return res
		}
	}

	if lookup != nil && hasLoc && in.Local != nil && !lookupTried {
		zone, err := lookup.Lookup(ctx, *in.Location, *in.Local)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("timezone lookup for %s failed: %v", in.Location, err))
		} else {
			t := inLocation(*in.Local, zone.Location())
			logger.Debug("resolved from local time and location", zap.String("zone", zone.ID), zap.Time("time", t))
			res.Time, res.Method = &t, MethodLookupLocal
			return res
		}
	}

	if in.Local != nil && in.GPS != nil {
		t, err := Derive(*in.Local, *in.GPS)
		if err != nil {
			res.Warnings = append(res.Warnings, err.Error())
		} else {
			res.Time, res.Method = &t, MethodDerived
			return res
		}
	}

	if in.Local != nil && assumed != nil {
		t := assumed.FromLocal(*in.Local)
		res.Warnings = append(res.Warnings, fmt.Sprintf("no location or GPS time; assumed timezone %s applied to local time %s",
			assumed, in.Local.Format(naiveLayout)))
		res.Time, res.Method = &t, MethodAssumed
		return res
	}

	return res
}

// ErrNoDerivedZone is wrapped by every rejection of Derive.
var ErrNoDerivedZone = errors.New("cannot derive timezone")

// Offsets are snapped to this grid, within tolerance.
const (
	offsetGrid      = 15 * 60
	offsetTolerance = 5 * 60
)

// Derive infers the UTC offset in effect when local (a naive wall clock)
// and gps (a UTC instant) describe the same moment. The difference is
// snapped to the nearest 15 minutes; clock drift beyond 5 minutes is
// rejected. The result is local re-expressed under the derived offset.
func Derive(local, gps time.Time) (time.Time, error) {
	diff := naiveUnix(local) - gps.Unix()

	abs, sign := diff, int64(1)
	if diff < 0 {
		abs, sign = -diff, -1
	}

	rounded := (abs + offsetGrid/2) / offsetGrid * offsetGrid
	drift := rounded - abs
	if drift < 0 {
		drift = -drift
	}
	if drift > offsetTolerance {
		return time.Time{}, fmt.Errorf("%w: local %s and GPS %s differ by %ds, which is %ds from a 15 minute boundary",
			ErrNoDerivedZone, local.Format(naiveLayout), gps.UTC().Format(time.RFC3339), diff, drift)
	}

	offset := sign * rounded
	if offset > math.MaxInt32 || offset < math.MinInt32 {
		return time.Time{}, fmt.Errorf("%w: offset %ds out of range", ErrNoDerivedZone, offset)
	}
	tz, err := catalog.NewExplicitTimezone(int(offset))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %w", ErrNoDerivedZone, err)
	}

	t := tz.FromLocal(local)
	if !sameWallClock(t, local) {
		return time.Time{}, fmt.Errorf("%w: local %s has no single interpretation at %s",
			ErrNoDerivedZone, local.Format(naiveLayout), tz)
	}
	return t, nil
}

// ApplyOverrides rewrites every non-nil timestamp into the forced timezone
// of opts, if one is set.
func ApplyOverrides(opts catalog.ImportOptions, times ...*time.Time) {
	if opts.ForcedTimezone == nil {
		return
	}
	for _, t := range times {
		if t != nil {
			*t = opts.ForcedTimezone.Adjust(*t)
		}
	}
}

// Naive parses a naive wall clock timestamp with the given layout.
func Naive(layout, value string) (time.Time, error) {
	return time.ParseInLocation(layout, value, time.UTC)
}

const naiveLayout = "2006-01-02T15:04:05"

func naiveUnix(t time.Time) int64 {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC).Unix()
}

func inLocation(wall time.Time, loc *time.Location) time.Time {
	return time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), wall.Nanosecond(), loc)
}

func sameWallClock(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd &&
		a.Hour() == b.Hour() && a.Minute() == b.Minute() && a.Second() == b.Second()
}

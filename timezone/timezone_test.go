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
	"testing"
	"time"

	"github.com/timelinize/mediaimport/catalog"
)

func naive(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := Naive("2006-01-02T15:04:05", s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func utc(t *testing.T, s string) time.Time {
	t.Helper()
	v, err := time.Parse(time.RFC3339, s)
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestDerive(t *testing.T) {
	for i, test := range []struct {
		local, gps string
		expect     string // empty means rejected
	}{
		{"2018-03-02T19:20:09", "2018-03-02T09:20:00Z", "2018-03-02T19:20:09+10:00"},
		{"2018-03-02T19:20:09", "2018-03-02T09:28:09Z", ""},
		{"2018-03-02T19:20:09", "2018-03-02T09:20:09Z", "2018-03-02T19:20:09+10:00"},
		{"2018-03-02T04:00:00", "2018-03-02T09:30:00Z", "2018-03-02T04:00:00-05:30"},
		{"2018-03-02T09:20:00", "2018-03-02T09:24:00Z", "2018-03-02T09:20:00Z"},
		{"2018-03-02T09:20:00", "2018-03-02T09:26:00Z", ""},
		{"2018-03-02T14:05:00", "2018-03-02T09:20:00Z", "2018-03-02T14:05:00+04:45"},
		{"2018-03-05T09:00:00", "2018-03-02T09:00:00Z", ""},
	} {
		actual, err := Derive(naive(t, test.local), utc(t, test.gps))
		if test.expect == "" {
			if !errors.Is(err, ErrNoDerivedZone) {
				t.Errorf("Test %d: Expected rejection but got %v (err=%v)", i, actual, err)
			}
			continue
		}
		if err != nil {
			t.Errorf("Test %d: Unexpected error: %v", i, err)
			continue
		}
		if got := actual.Format(time.RFC3339); got != test.expect {
			t.Errorf("Test %d: Expected '%s' but got '%s'", i, test.expect, got)
		}
	}
}

func TestDeriveOnGridIsExact(t *testing.T) {
	local := naive(t, "2021-07-14T12:00:00")
	for offset := -23 * 3600; offset <= 23*3600; offset += 900 {
		for _, drift := range []int{-300, -17, 0, 42, 300} {
			gps := local.Add(-time.Duration(offset+drift) * time.Second)
			actual, err := Derive(local, gps)
			if err != nil {
				t.Fatalf("offset %d drift %d: unexpected error: %v", offset, drift, err)
			}
			if _, got := actual.Zone(); got != offset {
				t.Errorf("offset %d drift %d: derived offset %d", offset, drift, got)
			}
			if actual.Hour() != 12 || actual.Minute() != 0 {
				t.Errorf("offset %d drift %d: wall clock changed to %s", offset, drift, actual)
			}
		}
	}
}

type fakeLookup struct {
	zone  Zone
	err   error
	calls int
}

func (f *fakeLookup) Lookup(_ context.Context, _ catalog.Location, _ time.Time) (Zone, error) {
	f.calls++
	return f.zone, f.err
}

func TestResolvePrecedence(t *testing.T) {
	loc := &catalog.Location{Latitude: -33.86, Longitude: 151.2}
	local := naive(t, "2018-03-02T19:20:09")
	gps := utc(t, "2018-03-02T09:20:00Z")
	sydney := Zone{Offset: 11 * 3600, ID: "Australia/Sydney", Name: "AEDT"}
	assumed, err := catalog.ParseExplicitTimezone("+02:00")
	if err != nil {
		t.Fatal(err)
	}

	for i, test := range []struct {
		lookup       *fakeLookup
		assumed      *catalog.ExplicitTimezone
		in           Input
		expect       string
		method       Method
		warnings     int
		lookupCalled int
	}{
		{
			lookup: &fakeLookup{zone: sydney},
			in:     Input{Location: loc, Local: &local, GPS: &gps},
			expect: "2018-03-02T20:20:00+11:00", method: MethodLookupGPS, lookupCalled: 1,
		},
		{
			lookup: &fakeLookup{zone: sydney},
			in:     Input{Location: loc, Local: &local},
			expect: "2018-03-02T19:20:09+11:00", method: MethodLookupLocal, lookupCalled: 1,
		},
		{
			// a failed lookup is not repeated for the local time
			lookup: &fakeLookup{err: errors.New("quota exceeded")},
			in:     Input{Location: loc, Local: &local, GPS: &gps},
			expect: "2018-03-02T19:20:09+10:00", method: MethodDerived, warnings: 1, lookupCalled: 1,
		},
		{
			in:     Input{Location: loc, Local: &local, GPS: &gps},
			expect: "2018-03-02T19:20:09+10:00", method: MethodDerived,
		},
		{
			assumed: &assumed,
			in:      Input{Local: &local},
			expect:  "2018-03-02T19:20:09+02:00", method: MethodAssumed, warnings: 1,
		},
		{
			in:     Input{Local: &local},
			method: MethodNone,
		},
		{
			in:     Input{GPS: &gps},
			method: MethodNone,
		},
	} {
		r := &Resolver{Assumed: test.assumed}
		if test.lookup != nil {
			r.Lookup = test.lookup
		}
		res := r.Resolve(context.Background(), test.in)
		if res.Method != test.method {
			t.Errorf("Test %d: Expected method %s but got %s", i, test.method, res.Method)
		}
		if test.expect == "" {
			if res.Time != nil {
				t.Errorf("Test %d: Expected no time but got %s", i, res.Time)
			}
		} else if res.Time == nil {
			t.Errorf("Test %d: Expected '%s' but got no time", i, test.expect)
		} else if got := res.Time.Format(time.RFC3339); got != test.expect {
			t.Errorf("Test %d: Expected '%s' but got '%s'", i, test.expect, got)
		}
		if len(res.Warnings) != test.warnings {
			t.Errorf("Test %d: Expected %d warnings but got %v", i, test.warnings, res.Warnings)
		}
		if test.lookup != nil && test.lookup.calls != test.lookupCalled {
			t.Errorf("Test %d: Expected %d lookup calls but got %d", i, test.lookupCalled, test.lookup.calls)
		}
	}
}

func TestResolveDerivationFailureWarns(t *testing.T) {
	local := naive(t, "2018-03-02T19:20:09")
	gps := utc(t, "2018-03-02T09:28:09Z")
	var r *Resolver
	res := r.Resolve(context.Background(), Input{Local: &local, GPS: &gps})
	if res.Time != nil {
		t.Errorf("Expected no time but got %s", res.Time)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Expected 1 warning but got %v", res.Warnings)
	}
}

func TestApplyOverrides(t *testing.T) {
	forced, err := catalog.ParseExplicitTimezone("-05:00")
	if err != nil {
		t.Fatal(err)
	}
	a := utc(t, "2018-03-02T09:20:00Z")
	var b *time.Time
	ApplyOverrides(catalog.ImportOptions{ForcedTimezone: &forced}, &a, b)
	if got := a.Format(time.RFC3339); got != "2018-03-02T04:20:00-05:00" {
		t.Errorf("Expected '2018-03-02T04:20:00-05:00' but got '%s'", got)
	}

	c := utc(t, "2018-03-02T09:20:00Z")
	ApplyOverrides(catalog.ImportOptions{}, &c)
	if got := c.Format(time.RFC3339); got != "2018-03-02T09:20:00Z" {
		t.Errorf("Expected time to be unchanged but got '%s'", got)
	}
}

func TestOfflineLookup(t *testing.T) {
	if testing.Short() {
		t.Skip("loads timezone polygons")
	}
	var ol OfflineLookup
	winter := time.Date(2020, 7, 1, 0, 0, 0, 0, time.UTC)
	summer := time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, test := range []struct {
		loc    catalog.Location
		when   time.Time
		id     string
		offset int
	}{
		{catalog.Location{Latitude: -33.8688, Longitude: 151.2093}, winter, "Australia/Sydney", 10 * 3600},
		{catalog.Location{Latitude: -33.8688, Longitude: 151.2093}, summer, "Australia/Sydney", 11 * 3600},
		{catalog.Location{Latitude: 35.6762, Longitude: 139.6503}, summer, "Asia/Tokyo", 9 * 3600},
	} {
		zone, err := ol.Lookup(context.Background(), test.loc, test.when)
		if err != nil {
			t.Errorf("Test %d: Unexpected error: %v", i, err)
			continue
		}
		if zone.ID != test.id {
			t.Errorf("Test %d: Expected '%s' but got '%s'", i, test.id, zone.ID)
		}
		if zone.Offset != test.offset {
			t.Errorf("Test %d: Expected offset %d but got %d", i, test.offset, zone.Offset)
		}
	}
}

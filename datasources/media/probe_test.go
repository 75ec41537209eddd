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

package media

import (
	"strings"
	"testing"
	"time"

	"github.com/timelinize/mediaimport/catalog"
)

const sampleProbeOutput = `Input #0, mov,mp4,m4a,3gp,3g2,mj2, from 'PXL_20230704_183012.mp4':
  Metadata:
    major_brand     : isom
    minor_version   : 131072
    compatible_brands: isomiso2mp41
    creation_time   : 2023-07-04T18:30:12.000000Z
    location        : +47.6062-122.3321/
    location-eng    : +47.6062-122.3321/
  Duration: 00:01:05.53, start: 0.000000, bitrate: 17410 kb/s
  Stream #0:0[0x1](eng): Video: h264 (High) (avc1 / 0x31637661), yuvj420p(pc, bt470bg/bt470bg/smpte170m, progressive), 1920x1080, 17204 kb/s, SAR 1:1 DAR 16:9, 29.97 fps, 30 tbr, 90k tbn (default)
    Metadata:
      creation_time   : 2023-07-04T18:31:17.000000Z
      handler_name    : VideoHandle
      rotate          : 90
  Stream #0:1[0x2](eng): Audio: aac (LC) (mp4a / 0x6134706D), 48000 Hz, stereo, fltp, 192 kb/s (default)
  Stream #0:2[0x3](eng): Video: mjpeg, yuvj420p, 640x480
`

func TestParseProbeOutput(t *testing.T) {
	res := ParseProbeOutput(sampleProbeOutput, nil)

	if res.CreationTime == nil || !res.CreationTime.Equal(time.Date(2023, 7, 4, 18, 30, 12, 0, time.UTC)) {
		t.Errorf("Expected first creation time but got %v", res.CreationTime)
	}
	if res.Location == nil || res.Location.Latitude != 47.6062 || res.Location.Longitude != -122.3321 || res.Location.Altitude != nil {
		t.Errorf("Expected Seattle location but got %v", res.Location)
	}
	if res.Orientation == nil || *res.Orientation != catalog.OrientationRotatedRight {
		t.Errorf("Expected rotated right but got %v", res.Orientation)
	}
	if res.Duration == nil || *res.Duration != 65 {
		t.Errorf("Expected 65s duration but got %v", res.Duration)
	}
	if !res.HasVideo || res.Dimensions == nil || *res.Dimensions != (catalog.Dimensions{Width: 1920, Height: 1080}) {
		t.Errorf("Expected first video stream dimensions 1920x1080 but got %v", res.Dimensions)
	}
	if res.LocalTimeCreation {
		t.Errorf("Did not expect local creation time")
	}
	if len(res.Warnings) > 0 {
		t.Errorf("Unexpected warnings: %v", res.Warnings)
	}
}

func TestParseProbeOutputLocalCreationTime(t *testing.T) {
	text := strings.Replace(sampleProbeOutput, "isomiso2mp41", "CAEPisom", 1)

	res := ParseProbeOutput(text, nil)
	if !res.LocalTimeCreation {
		t.Fatal("Expected local creation time")
	}
	if res.CreationTime != nil {
		t.Errorf("Expected no creation time without assumed timezone, got %v", res.CreationTime)
	}
	if len(res.Warnings) != 1 {
		t.Errorf("Expected one warning but got %v", res.Warnings)
	}

	tz, err := catalog.ParseExplicitTimezone("-07:00")
	if err != nil {
		t.Fatal(err)
	}
	res = ParseProbeOutput(text, &tz)
	if res.CreationTime == nil || res.CreationTime.Format(time.RFC3339) != "2023-07-04T18:30:12-07:00" {
		t.Errorf("Expected wall clock in assumed timezone but got %v", res.CreationTime)
	}
}

func TestParseProbeOutputNothingUseful(t *testing.T) {
	for i, text := range []string{
		"",
		"some.mp4: Invalid data found when processing input\n",
		"creation_time: yesterday\n",
		"Stream #0:0: Audio: aac, 44100 Hz\n",
	} {
		res := ParseProbeOutput(text, nil)
		if res.CreationTime != nil || res.Location != nil || res.Duration != nil || res.HasVideo {
			t.Errorf("Test %d: Expected empty result but got %+v", i, res)
		}
	}
}

func TestParseProbeLocation(t *testing.T) {
	alt := 12.0
	for i, test := range []struct {
		input  string
		expect *catalog.Location
	}{
		{"+50.1234-101.1234/", &catalog.Location{Latitude: 50.1234, Longitude: -101.1234}},
		{"-33.8600+151.2000/", &catalog.Location{Latitude: -33.86, Longitude: 151.2}},
		{"+50.1234-101.1234+012.000/", &catalog.Location{Latitude: 50.1234, Longitude: -101.1234, Altitude: &alt}},
		{"50.1234", nil},
		{"+abc-def/", nil},
		{"", nil},
	} {
		actual, ok := parseProbeLocation(test.input)
		if test.expect == nil {
			if ok {
				t.Errorf("Test %d: Expected no location but got %v", i, actual)
			}
			continue
		}
		if !ok || actual.Latitude != test.expect.Latitude || actual.Longitude != test.expect.Longitude {
			t.Errorf("Test %d: Expected %v but got %v", i, test.expect, actual)
			continue
		}
		if (test.expect.Altitude == nil) != (actual.Altitude == nil) ||
			(actual.Altitude != nil && *actual.Altitude != *test.expect.Altitude) {
			t.Errorf("Test %d: Expected altitude %v but got %v", i, test.expect.Altitude, actual.Altitude)
		}
	}
}

func TestParseProbeDuration(t *testing.T) {
	for i, test := range []struct {
		input  string
		expect catalog.Duration
		ok     bool
	}{
		{"00:00:05.03, start: 0.000000, bitrate: 1 kb/s", 5, true},
		{"01:02:03.99", 3723, true},
		{"N/A, bitrate: N/A", 0, false},
		{"12:34", 0, false},
	} {
		actual, ok := parseProbeDuration(test.input)
		if ok != test.ok || actual != test.expect {
			t.Errorf("Test %d: Expected %d (%t) but got %d (%t)", i, test.expect, test.ok, actual, ok)
		}
	}
}

func TestParseStreamDimensions(t *testing.T) {
	for i, test := range []struct {
		input  string
		expect *catalog.Dimensions
	}{
		{"Video: h264 (avc1 / 0x31637661), yuv420p, 1280x720 [SAR 1:1 DAR 16:9], 30 fps", &catalog.Dimensions{Width: 1280, Height: 720}},
		{"Video: hevc, yuv420p10le(tv), 3840x2160, 60 fps", &catalog.Dimensions{Width: 3840, Height: 2160}},
		{"Video: mjpeg, 0x0", nil},
		{"Video: h264 (avc1 / 0x31637661)", nil},
	} {
		actual := parseStreamDimensions(test.input)
		if (actual == nil) != (test.expect == nil) || (actual != nil && *actual != *test.expect) {
			t.Errorf("Test %d: Expected %v but got %v", i, test.expect, actual)
		}
	}
}

func TestISOIEC14496Timestamp(t *testing.T) {
	if ts := isoIEC14496Timestamp(0); !ts.IsZero() {
		t.Errorf("Expected zero time for unset timestamp, got %v", ts)
	}
	ts := isoIEC14496Timestamp(mp4EpochToUnixEpoch + 1688495412)
	if expect := time.Date(2023, 7, 4, 18, 30, 12, 0, time.UTC); !ts.Equal(expect) {
		t.Errorf("Expected %v but got %v", expect, ts)
	}
}

func TestMP4XYZCoordsToLocation(t *testing.T) {
	loc, err := mp4XYZCoordsToLocation("+47.6062-122.3321/")
	if err != nil {
		t.Fatal(err)
	}
	if loc.Latitude != 47.6062 || loc.Longitude != -122.3321 {
		t.Errorf("Expected 47.6062,-122.3321 but got %v", loc)
	}
	if _, err := mp4XYZCoordsToLocation("garbage"); err == nil {
		t.Errorf("Expected error for malformed coordinates")
	}
}

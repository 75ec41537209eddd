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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/internal/testhelpers"
	"github.com/timelinize/mediaimport/timezone"
)

func rat(num, den uint32) *testhelpers.Rational {
	return &testhelpers.Rational{Num: num, Den: den}
}

func byteRef(b byte) *byte { return &b }

func sydneyFields() testhelpers.ExifFields {
	return testhelpers.ExifFields{
		Make:              "Google",
		Model:             "Pixel 3",
		Orientation:       6,
		DateTimeOriginal:  "2018:03:02 19:20:09",
		DateTimeDigitized: "2018:03:02 19:20:09",
		ExposureTime:      rat(1, 120),
		FNumber:           rat(18, 10),
		FocalLength:       rat(444, 100),
		ISO:               100,
		GPSLatitudeRef:    "S",
		GPSLatitude:       []testhelpers.Rational{{Num: 33, Den: 1}, {Num: 51, Den: 1}, {Num: 3600, Den: 100}},
		GPSLongitudeRef:   "E",
		GPSLongitude:      []testhelpers.Rational{{Num: 151, Den: 1}, {Num: 12, Den: 1}, {Num: 0, Den: 1}},
		GPSAltitudeRef:    byteRef(0),
		GPSAltitude:       rat(25, 1),
		GPSDOP:            rat(5, 1),
		GPSTimeStamp:      []testhelpers.Rational{{Num: 9, Den: 1}, {Num: 20, Den: 1}, {Num: 0, Den: 1}},
		GPSDateStamp:      "2018:03:02",
	}
}

func TestExtractImageMetadata(t *testing.T) {
	data := testhelpers.JPEGWithExif(t, 16, 8, sydneyFields())

	meta, err := ExtractImageMetadata(context.Background(), data, "IMG_1.jpg", nil)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if meta == nil {
		t.Fatal("Expected metadata")
	}

	if meta.Make != "Google" || meta.Model != "Pixel 3" {
		t.Errorf("Expected Google Pixel 3 but got '%s' '%s'", meta.Make, meta.Model)
	}
	if meta.Orientation == nil || *meta.Orientation != catalog.OrientationRotatedRight {
		t.Errorf("Expected rotated right orientation but got %v", meta.Orientation)
	}
	if meta.Camera == nil {
		t.Fatal("Expected camera settings")
	}
	for i, test := range []struct{ expect, actual string }{
		{"1/120 s", meta.Camera.ExposureTime},
		{"ƒ/1.8", meta.Camera.Aperture},
		{"4.4 mm", meta.Camera.FocalLength},
		{"ISO100", meta.Camera.ISO},
	} {
		if test.expect != test.actual {
			t.Errorf("Camera setting %d: Expected '%s' but got '%s'", i, test.expect, test.actual)
		}
	}

	if meta.Location == nil {
		t.Fatal("Expected a location")
	}
	if lat := meta.Location.Latitude; lat > -33.859 || lat < -33.861 {
		t.Errorf("Expected latitude near -33.86 but got %f", lat)
	}
	if lon := meta.Location.Longitude; lon < 151.199 || lon > 151.201 {
		t.Errorf("Expected longitude near 151.2 but got %f", lon)
	}
	if meta.Location.Altitude == nil || *meta.Location.Altitude != 25 {
		t.Errorf("Expected altitude 25 but got %v", meta.Location.Altitude)
	}
	if meta.DOP == nil || *meta.DOP != 5 {
		t.Errorf("Expected DOP 5 but got %v", meta.DOP)
	}

	if meta.GPSTime == nil || meta.GPSTime.Format(time.RFC3339) != "2018-03-02T09:20:00Z" {
		t.Errorf("Expected GPS time 2018-03-02T09:20:00Z but got %v", meta.GPSTime)
	}
	if meta.Taken == nil || meta.Taken.Format("2006-01-02 15:04:05") != "2018-03-02 19:20:09" {
		t.Errorf("Expected naive taken time but got %v", meta.Taken)
	}

	// without a lookup, the zone is derived from the GPS and local times
	if meta.ActivityTime == nil || meta.ActivityTime.Format(time.RFC3339) != "2018-03-02T19:20:09+10:00" {
		t.Errorf("Expected activity time 2018-03-02T19:20:09+10:00 but got %v", meta.ActivityTime)
	}
	if meta.TimeMethod != timezone.MethodDerived {
		t.Errorf("Expected derived time but got %s", meta.TimeMethod)
	}
}

func TestExtractImageMetadataUsesLookup(t *testing.T) {
	data := testhelpers.JPEGWithExif(t, 16, 8, sydneyFields())
	resolver := &timezone.Resolver{
		Lookup: timezone.LookupFunc(func(context.Context, catalog.Location, time.Time) (timezone.Zone, error) {
			return timezone.Zone{Offset: 11 * 3600, ID: "Australia/Sydney"}, nil
		}),
	}
	meta, err := ExtractImageMetadata(context.Background(), data, "IMG_1.jpg", resolver)
	if err != nil {
		t.Fatal(err)
	}
	if meta.ActivityTime == nil || meta.ActivityTime.Format(time.RFC3339) != "2018-03-02T20:20:00+11:00" {
		t.Errorf("Expected GPS time in looked up zone but got %v", meta.ActivityTime)
	}
}

func TestExtractImageMetadataNoExif(t *testing.T) {
	for i, data := range [][]byte{
		testhelpers.JPEG(t, 4, 4),
		[]byte("plain text, not an image"),
		{},
		{0xFF, 0xD8, 0xFF, 0xE1, 0x00, 0x40, 'E', 'x'}, // truncated segment
	} {
		meta, err := ExtractImageMetadata(context.Background(), data, "x.jpg", nil)
		if err != nil || meta != nil {
			t.Errorf("Test %d: Expected no metadata and no error, got %v, %v", i, meta, err)
		}
	}
}

func TestExtractImageMetadataAnalysisErrors(t *testing.T) {
	for i, mutate := range []func(*testhelpers.ExifFields){
		func(f *testhelpers.ExifFields) { f.GPSLatitudeRef = "X" },
		func(f *testhelpers.ExifFields) { f.GPSLongitudeRef = "N" },
		func(f *testhelpers.ExifFields) { f.GPSAltitudeRef = byteRef(7) },
		func(f *testhelpers.ExifFields) { f.MalformedAltitude = true },
		func(f *testhelpers.ExifFields) { f.GPSAltitudeRef = nil },
		func(f *testhelpers.ExifFields) { f.DateTimeOriginal = "March 2nd 2018" },
		func(f *testhelpers.ExifFields) { f.GPSDateStamp = "2018-03-02" },
	} {
		fields := sydneyFields()
		mutate(&fields)
		data := testhelpers.JPEGWithExif(t, 8, 8, fields)

		_, err := ExtractImageMetadata(context.Background(), data, "bad.jpg", nil)
		var ae *AnalysisError
		if !errors.As(err, &ae) {
			t.Errorf("Test %d: Expected an AnalysisError but got %v", i, err)
		}
	}
}

func TestExtractImageMetadataPartialTags(t *testing.T) {
	data := testhelpers.JPEGWithExif(t, 8, 8, testhelpers.ExifFields{
		Orientation:      5, // mirrored
		DateTimeOriginal: "2019:12:25 08:00:00",
		ExposureTime:     rat(1, 60),
		FNumber:          rat(28, 10),
	})
	assumed, err := catalog.ParseExplicitTimezone("-05:00")
	if err != nil {
		t.Fatal(err)
	}
	meta, err := ExtractImageMetadata(context.Background(), data, "IMG_2.jpg", &timezone.Resolver{Assumed: &assumed})
	if err != nil {
		t.Fatal(err)
	}
	if meta.Orientation != nil {
		t.Errorf("Expected unsupported orientation to be absent, got %v", *meta.Orientation)
	}
	if meta.Camera != nil {
		t.Errorf("Expected no camera settings without all four tags, got %v", meta.Camera)
	}
	if meta.Location != nil || meta.GPSTime != nil {
		t.Errorf("Expected no GPS data")
	}
	if meta.ActivityTime == nil || meta.ActivityTime.Format(time.RFC3339) != "2019-12-25T08:00:00-05:00" {
		t.Errorf("Expected assumed timezone to be applied, got %v", meta.ActivityTime)
	}
	if len(meta.Warnings) != 1 {
		t.Errorf("Expected a warning for the assumed timezone but got %v", meta.Warnings)
	}
}

func TestPrettyCameraStrings(t *testing.T) {
	for i, test := range []struct {
		fn            func(string) string
		input, expect string
	}{
		{prettyAperture, "f/2.8", "ƒ/2.8"},
		{prettyAperture, "2.8", "2.8"},
		{prettyISO, "ISO 100", "ISO100"},
		{prettyISO, "100", "100"},
	} {
		if actual := test.fn(test.input); actual != test.expect {
			t.Errorf("Test %d: Expected '%s' but got '%s'", i, test.expect, actual)
		}
	}
}

func TestExifTags(t *testing.T) {
	data := testhelpers.JPEGWithExif(t, 8, 8, sydneyFields())
	tags, err := ExifTags(data)
	if err != nil {
		t.Fatal(err)
	}
	if tags["Make"] != "Google" {
		t.Errorf("Expected Make 'Google' but got '%s'", tags["Make"])
	}
	if _, ok := tags["GPS Latitude"]; !ok {
		t.Errorf("Expected GPS Latitude among %v", tags)
	}
}

func TestSplitCamelCaseIntoWords(t *testing.T) {
	for input, expect := range map[string]string{
		"ImageWidth":            "Image Width",
		"BitsPerSample":         "Bits Per Sample",
		"YCbCrSubSampling":      "Y Cb Cr Sub Sampling",
		"XResolution":           "X Resolution",
		"DateTimeOriginal":      "Date Time Original",
		"ExifIFDPointer":        "Exif IFD Pointer",
		"FNumber":               "F Number",
		"ISOSpeedRatings":       "ISO Speed Ratings",
		"OECF":                  "OECF",
		"FocalLengthIn35mmFilm": "Focal Length In 35mm Film",
		"GPSLatitudeRef":        "GPS Latitude Ref",
		"GPSDOP":                "GPSDOP",
		"GPSImgDirectionRef":    "GPS Img Direction Ref",
		"XPTitle":               "XP Title",
	} {
		actual := splitCamelCaseIntoWords(input)
		if actual != expect {
			t.Errorf("'%s': Expected '%s' but got '%s'", input, expect, actual)
		}
	}
}

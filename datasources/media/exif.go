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
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"
	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/timezone"
	"go.uber.org/zap"
)

// ImageMetadata is what could be learned from the EXIF tags of an image.
type ImageMetadata struct {
	Orientation *catalog.Orientation

	// Naive wall clock readings (see timezone.Input).
	Taken     *time.Time
	Digitized *time.Time

	// UTC instant from the GPS date and time stamps.
	GPSTime *time.Time

	// Resolved capture time, with an explicit offset.
	ActivityTime *time.Time
	TimeMethod   timezone.Method

	Make, Model string
	Camera      *CameraSettings

	Location *catalog.Location
	DOP      *float64

	// Fallbacks taken while resolving the activity time.
	Warnings []string
}

// CameraSettings are the exposure parameters of a photo, formatted for display.
type CameraSettings struct {
	ExposureTime string `json:"exposure_time"` // "1/120 s"
	Aperture     string `json:"aperture"`      // "ƒ/1.8"
	FocalLength  string `json:"focal_length"`  // "4.3 mm"
	ISO          string `json:"iso"`           // "ISO100"
}

func (c CameraSettings) String() string {
	return strings.Join([]string{c.ExposureTime, c.Aperture, c.FocalLength, c.ISO}, " ")
}

// DecodeError is returned when an image has EXIF data that could not be decoded.
type DecodeError struct {
	Filename string
	Err      error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding EXIF of %s: %v", e.Filename, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// AnalysisError is returned when decoded EXIF tags hold values that make
// no sense, such as unknown GPS references or unparseable timestamps.
type AnalysisError struct {
	Filename string
	Field    exif.FieldName
	Msg      string
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analyzing EXIF of %s: %s: %s", e.Filename, e.Field, e.Msg)
}

// ExtractImageMetadata decodes the EXIF tags in data. Images that have no
// EXIF data yield nil and no error. The activity time is resolved with
// resolver, which may be nil.
func ExtractImageMetadata(ctx context.Context, data []byte, filename string, resolver *timezone.Resolver) (*ImageMetadata, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if noExif(err) {
			return nil, nil
		}
		if exif.IsCriticalError(err) {
			return nil, &DecodeError{Filename: filename, Err: err}
		}
		// a sub-IFD failed to load; whatever did load is still usable
		catalog.Log.Named("media").Debug("partial EXIF data",
			zap.String("filename", filename),
			zap.Error(err))
	}

	a := exifAnalyzer{x: x, filename: filename}
	meta := new(ImageMetadata)

	meta.Orientation = a.orientation()
	meta.Make = a.str(exif.Make)
	meta.Model = a.str(exif.Model)
	meta.Camera = a.cameraSettings()

	if meta.Location, err = a.location(); err != nil {
		return nil, err
	}
	meta.DOP = a.float(exif.GPSDOP)

	if meta.Taken, err = a.naiveTime(exif.DateTimeOriginal); err != nil {
		return nil, err
	}
	if meta.Digitized, err = a.naiveTime(exif.DateTimeDigitized); err != nil {
		return nil, err
	}
	if meta.GPSTime, err = a.gpsTime(); err != nil {
		return nil, err
	}

	res := resolver.Resolve(ctx, timezone.Input{
		Location: meta.Location,
		Local:    meta.Taken,
		GPS:      meta.GPSTime,
	})
	meta.ActivityTime, meta.TimeMethod, meta.Warnings = res.Time, res.Method, res.Warnings

	return meta, nil
}

// noExif reports whether err means the file simply has no EXIF data:
// unknown file types, JPEGs without an Exif segment and truncated
// directories all end up here.
func noExif(err error) bool {
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "failed to find exif intro marker") ||
		strings.Contains(msg, "EOF")
}

type exifAnalyzer struct {
	x        *exif.Exif
	filename string
}

func (a exifAnalyzer) tag(name exif.FieldName) *tiff.Tag {
	tag, err := a.x.Get(name)
	if err != nil || tag.Count == 0 {
		return nil
	}
	return tag
}

func (a exifAnalyzer) fail(name exif.FieldName, format string, args ...any) error {
	return &AnalysisError{Filename: a.filename, Field: name, Msg: fmt.Sprintf(format, args...)}
}

func (a exifAnalyzer) str(name exif.FieldName) string {
	tag := a.tag(name)
	if tag == nil {
		return ""
	}
	s, err := tag.StringVal()
	if err != nil {
		return ""
	}
	return strings.TrimSpace(s)
}

func (a exifAnalyzer) rat(name exif.FieldName, i int) (float64, bool) {
	tag := a.tag(name)
	if tag == nil || int(tag.Count) <= i {
		return 0, false
	}
	num, den, err := tag.Rat2(i)
	if err != nil || den == 0 {
		return 0, false
	}
	return float64(num) / float64(den), true
}

func (a exifAnalyzer) float(name exif.FieldName) *float64 {
	v, ok := a.rat(name, 0)
	if !ok {
		return nil
	}
	return &v
}

func (a exifAnalyzer) orientation() *catalog.Orientation {
	tag := a.tag(exif.Orientation)
	if tag == nil {
		return nil
	}
	v, err := tag.Int(0)
	if err != nil {
		return nil
	}
	var o catalog.Orientation
	switch v {
	case 1:
		o = catalog.OrientationStraight
	case 3:
		o = catalog.OrientationUpsideDown
	case 6:
		o = catalog.OrientationRotatedRight
	case 8:
		o = catalog.OrientationRotatedLeft
	default:
		// mirrored and undefined orientations are ignored
		return nil
	}
	return &o
}

func (a exifAnalyzer) cameraSettings() *CameraSettings {
	exposure, ok1 := a.rational(exif.ExposureTime)
	fnumber, ok2 := a.rational(exif.FNumber)
	focal, ok3 := a.rational(exif.FocalLength)
	isoTag := a.tag(exif.ISOSpeedRatings)
	if !ok1 || !ok2 || !ok3 || isoTag == nil {
		return nil
	}
	iso, err := isoTag.Int(0)
	if err != nil {
		return nil
	}
	return &CameraSettings{
		ExposureTime: formatExposure(exposure),
		Aperture:     prettyAperture(fmt.Sprintf("f/%s", formatDecimal(fnumber.float(), 1))),
		FocalLength:  formatDecimal(focal.float(), 1) + " mm",
		ISO:          prettyISO(fmt.Sprintf("ISO %d", iso)),
	}
}

type rational struct{ num, den int64 }

func (r rational) float() float64 { return float64(r.num) / float64(r.den) }

func (a exifAnalyzer) rational(name exif.FieldName) (rational, bool) {
	tag := a.tag(name)
	if tag == nil {
		return rational{}, false
	}
	num, den, err := tag.Rat2(0)
	if err != nil || den == 0 {
		return rational{}, false
	}
	return rational{num, den}, true
}

func formatExposure(r rational) string {
	if r.num > 0 && r.float() < 1 {
		return fmt.Sprintf("1/%d s", int64(math.Round(float64(r.den)/float64(r.num))))
	}
	return formatDecimal(r.float(), 1) + " s"
}

func formatDecimal(v float64, places int) string {
	return strconv.FormatFloat(v, 'f', places, 64)
}

// prettyAperture uses the f-number glyph: "f/2.8" becomes "ƒ/2.8".
func prettyAperture(s string) string {
	if rest, ok := strings.CutPrefix(s, "f/"); ok {
		return "ƒ/" + rest
	}
	return s
}

// prettyISO compacts "ISO 100" to "ISO100".
func prettyISO(s string) string {
	if rest, ok := strings.CutPrefix(s, "ISO "); ok {
		return "ISO" + rest
	}
	return s
}

func (a exifAnalyzer) location() (*catalog.Location, error) {
	latTag, lonTag := a.tag(exif.GPSLatitude), a.tag(exif.GPSLongitude)
	if latTag == nil || lonTag == nil {
		return nil, nil
	}

	lat, err := a.degrees(exif.GPSLatitude, latTag)
	if err != nil {
		return nil, err
	}
	lon, err := a.degrees(exif.GPSLongitude, lonTag)
	if err != nil {
		return nil, err
	}

	switch ref := a.str(exif.GPSLatitudeRef); ref {
	case "N":
	case "S":
		lat = -lat
	default:
		return nil, a.fail(exif.GPSLatitudeRef, "expected N or S but got %q", ref)
	}
	switch ref := a.str(exif.GPSLongitudeRef); ref {
	case "E":
	case "W":
		lon = -lon
	default:
		return nil, a.fail(exif.GPSLongitudeRef, "expected E or W but got %q", ref)
	}

	loc := &catalog.Location{Latitude: lat, Longitude: lon}

	if altTag := a.tag(exif.GPSAltitude); altTag != nil {
		if altTag.Format() != tiff.RatVal {
			return nil, a.fail(exif.GPSAltitude, "altitude in meters must be a rational, got %s", altTag)
		}
		alt, ok := a.rat(exif.GPSAltitude, 0)
		if !ok {
			return nil, a.fail(exif.GPSAltitude, "invalid rational %s", altTag)
		}
		refTag := a.tag(exif.GPSAltitudeRef)
		if refTag == nil {
			return nil, a.fail(exif.GPSAltitudeRef, "altitude has no sea level reference")
		}
		ref, err := refTag.Int(0)
		if err != nil {
			return nil, a.fail(exif.GPSAltitudeRef, "unexpected value %s", refTag)
		}
		switch ref {
		case 0:
		case 1:
			alt = -alt
		default:
			return nil, a.fail(exif.GPSAltitudeRef, "expected 0 (above sea level) or 1 (below) but got %d", ref)
		}
		loc.Altitude = &alt
	}

	return loc, nil
}

// degrees converts a degrees, minutes, seconds triple of rationals.
func (a exifAnalyzer) degrees(name exif.FieldName, tag *tiff.Tag) (float64, error) {
	if tag.Format() != tiff.RatVal || tag.Count != 3 {
		return 0, a.fail(name, "expected 3 rationals but got %s", tag)
	}
	var result float64
	for i, factor := range []float64{1, 60, 3600} {
		v, ok := a.rat(name, i)
		if !ok {
			return 0, a.fail(name, "invalid rational in %s", tag)
		}
		result += v / factor
	}
	return result, nil
}

// EXIF timestamps look like "2018:03:02 19:20:09".
const exifTimeLayout = "2006:01:02 15:04:05"

func (a exifAnalyzer) naiveTime(name exif.FieldName) (*time.Time, error) {
	s := strings.TrimRight(a.str(name), "\x00")
	if blankExifTime(s) {
		return nil, nil
	}
	t, err := timezone.Naive(exifTimeLayout, s)
	if err != nil {
		return nil, a.fail(name, "cannot parse timestamp %q: %v", s, err)
	}
	return &t, nil
}

// blankExifTime reports whether a camera wrote a placeholder instead of a
// time, like "0000:00:00 00:00:00" or only spaces and colons.
func blankExifTime(s string) bool {
	return strings.Trim(s, " :0") == ""
}

// gpsTime combines the GPS date stamp ("2018:03:02") and the time stamp
// (hours, minutes and seconds as rationals) into a UTC instant.
func (a exifAnalyzer) gpsTime() (*time.Time, error) {
	dateStr := a.str(exif.GPSDateStamp)
	timeTag := a.tag(exif.GPSTimeStamp)
	if dateStr == "" || timeTag == nil {
		return nil, nil
	}
	if timeTag.Format() != tiff.RatVal || timeTag.Count != 3 {
		return nil, a.fail(exif.GPSTimeStamp, "expected 3 rationals but got %s", timeTag)
	}
	var hms [3]float64
	for i := range hms {
		v, ok := a.rat(exif.GPSTimeStamp, i)
		if !ok || v < 0 {
			return nil, a.fail(exif.GPSTimeStamp, "invalid rational in %s", timeTag)
		}
		hms[i] = v
	}

	stamp := fmt.Sprintf("%s %02d:%02d:%s UTC", dateStr, int(hms[0]), int(hms[1]), formatSeconds(hms[2]))
	t, err := time.Parse("2006:01:02 15:04:05.999999999 MST", stamp)
	if err != nil {
		return nil, a.fail(exif.GPSDateStamp, "cannot parse GPS timestamp %q: %v", stamp, err)
	}
	t = t.UTC()
	return &t, nil
}

func formatSeconds(s float64) string {
	whole := math.Floor(s)
	out := fmt.Sprintf("%02d", int(whole))
	if frac := s - whole; frac > 0 {
		out += strings.TrimPrefix(strconv.FormatFloat(frac, 'f', -1, 64), "0")
	}
	return out
}

// ExifTags returns every decodable EXIF tag of data with a readable name,
// e.g. "Focal Length" rather than "FocalLength".
func ExifTags(data []byte) (map[string]string, error) {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		if noExif(err) {
			return nil, nil
		}
		if exif.IsCriticalError(err) {
			return nil, err
		}
	}
	tags := make(map[string]string)
	err = x.Walk(exifWalkerFunc(func(name exif.FieldName, tag *tiff.Tag) error {
		switch tag.Format() {
		case tiff.StringVal:
			s, _ := tag.StringVal()
			tags[splitCamelCaseIntoWords(string(name))] = s
		case tiff.UndefVal, tiff.OtherVal:
			// binary blobs like maker notes
		default:
			tags[splitCamelCaseIntoWords(string(name))] = tag.String()
		}
		return nil
	}))
	return tags, err
}

type exifWalkerFunc func(exif.FieldName, *tiff.Tag) error

func (w exifWalkerFunc) Walk(name exif.FieldName, tag *tiff.Tag) error {
	return w(name, tag)
}

// splitCamelCaseIntoWords splits camel-cased strings into words by inserting
// spaces at the most sensible places. This algorithm isn't perfect as it doesn't
// use a dictionary, but it's pretty good for EXIF field names.
func splitCamelCaseIntoWords(s string) string {
	var sb strings.Builder
	for i, ch := range s {
		u, l := upper(ch), lower(ch)

		// previous is upper, next is upper, next is lower
		pu, nu, nl := i == 0, i >= len(s)-1, i >= len(s)-1
		if i > 0 {
			pu = upper(rune(s[i-1]))
		}
		if i < len(s)-1 {
			nu = upper(rune(s[i+1]))
			nl = lower(rune(s[i+1]))
		}

		if i > 0 && ((u && !pu) || (u && !nu) || (!u && !l && !nu && !nl)) {
			sb.WriteRune(' ')
		}
		sb.WriteRune(ch)
	}
	return sb.String()
}

func upper(ch rune) bool { return ch >= 'A' && ch <= 'Z' }
func lower(ch rune) bool { return ch >= 'a' && ch <= 'z' }

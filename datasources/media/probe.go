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
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/timelinize/mediaimport/catalog"
)

// ProbeResult is what could be learned from the diagnostic output of a
// media prober.
type ProbeResult struct {
	CreationTime *time.Time
	Location     *catalog.Location
	Orientation  *catalog.Orientation
	Duration     *catalog.Duration
	Dimensions   *catalog.Dimensions // as stored, before rotation

	// Set if a video stream was described.
	HasVideo bool

	// Set if the container brands identify a camera that writes local
	// time into creation_time while labeling it UTC.
	LocalTimeCreation bool

	Warnings []string
}

// Compatible brands of cameras that store local time in creation_time.
var localTimeBrands = []string{"CAEP"}

// ParseProbeOutput parses the stderr text of ffprobe. Every line is read as
// "key: value", split at the first colon. Only the first creation_time and
// the first video stream are honored. assumed is used to interpret
// creation times known to be local.
func ParseProbeOutput(text string, assumed *catalog.ExplicitTimezone) ProbeResult {
	var res ProbeResult
	var creationTime string

	for line := range strings.Lines(text) {
		param, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		param, value = strings.TrimSpace(param), strings.TrimSpace(value)

		switch param {
		case "compatible_brands":
			for _, brand := range localTimeBrands {
				if strings.Contains(value, brand) {
					res.LocalTimeCreation = true
				}
			}

		case "creation_time":
			if creationTime == "" {
				creationTime = value
			}

		case "location":
			if loc, ok := parseProbeLocation(value); ok && res.Location == nil {
				res.Location = loc
			}

		case "rotate":
			if o, ok := parseRotation(value); ok && res.Orientation == nil {
				res.Orientation = &o
			}

		case "Duration":
			if d, ok := parseProbeDuration(value); ok && res.Duration == nil {
				res.Duration = &d
			}

		default:
			if strings.HasPrefix(param, "Stream #") && strings.Contains(value, "Video:") && !res.HasVideo {
				res.HasVideo = true
				res.Dimensions = parseStreamDimensions(value)
			}
		}
	}

	if creationTime != "" {
		res.CreationTime, res.Warnings = parseCreationTime(creationTime, res.LocalTimeCreation, assumed)
	}

	return res
}

func parseCreationTime(value string, local bool, assumed *catalog.ExplicitTimezone) (*time.Time, []string) {
	t, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return nil, []string{fmt.Sprintf("cannot parse creation_time %q: %v", value, err)}
	}
	return creationInZone(t, local, assumed)
}

// creationInZone returns a container creation time. If local is set, the
// camera wrote its local wall clock and labeled it UTC, so the wall clock
// is reinterpreted in the assumed timezone.
func creationInZone(t time.Time, local bool, assumed *catalog.ExplicitTimezone) (*time.Time, []string) {
	t = t.UTC()
	if !local {
		return &t, nil
	}
	if assumed == nil {
		return nil, []string{fmt.Sprintf("creation time %s is local time but no timezone is assumed",
			t.Format("2006-01-02T15:04:05"))}
	}
	t = assumed.FromLocal(t)
	return &t, nil
}

// parseProbeLocation parses ISO 6709 strings like "+50.1234-101.1234/",
// splitting latitude from longitude at the last sign. An altitude
// component ("+50.1234-101.1234+012.000/") is recognized too.
func parseProbeLocation(value string) (*catalog.Location, bool) {
	value = strings.TrimSuffix(strings.TrimSpace(value), "/")

	split := lastSign(value)
	if split <= 0 {
		return nil, false
	}
	latStr, lonStr := value[:split], value[split:]

	var alt *float64
	if inner := lastSign(latStr); inner > 0 {
		a, err := strconv.ParseFloat(lonStr, 64)
		if err != nil {
			return nil, false
		}
		alt = &a
		latStr, lonStr = latStr[:inner], latStr[inner:]
	}

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return nil, false
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return nil, false
	}
	return &catalog.Location{Latitude: lat, Longitude: lon, Altitude: alt}, true
}

// lastSign returns the index of the last '+' or '-' not at position 0, or -1.
func lastSign(s string) int {
	i := strings.LastIndexAny(s, "+-")
	if i <= 0 {
		return -1
	}
	return i
}

func parseRotation(value string) (catalog.Orientation, bool) {
	switch value {
	case "0":
		return catalog.OrientationStraight, true
	case "90":
		return catalog.OrientationRotatedRight, true
	case "180":
		return catalog.OrientationUpsideDown, true
	case "270":
		return catalog.OrientationRotatedLeft, true
	}
	return 0, false
}

// parseProbeDuration reads whole seconds from "H:MM:SS[.ff], start: ...".
func parseProbeDuration(value string) (catalog.Duration, bool) {
	value, _, _ = strings.Cut(value, ",")
	value, _, _ = strings.Cut(strings.TrimSpace(value), ".")
	parts := strings.Split(value, ":")
	if len(parts) != 3 {
		return 0, false
	}
	var hms [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 {
			return 0, false
		}
		hms[i] = n
	}
	return catalog.Duration(hms[0]*3600 + hms[1]*60 + hms[2]), true
}

var dimensionsToken = regexp.MustCompile(`^(\d+)x(\d+)$`)

// parseStreamDimensions finds the first "WxH" token of a stream description
// like "Video: h264 (avc1 / 0x31637661), yuv420p, 1920x1080 [SAR 1:1 DAR 16:9], 30 fps".
func parseStreamDimensions(value string) *catalog.Dimensions {
	fields := strings.FieldsFunc(value, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
	for _, f := range fields {
		m := dimensionsToken.FindStringSubmatch(f)
		if m == nil {
			continue
		}
		w, err1 := strconv.Atoi(m[1])
		h, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil || w == 0 || h == 0 {
			continue
		}
		return &catalog.Dimensions{Width: w, Height: h}
	}
	return nil
}

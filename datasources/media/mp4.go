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
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/abema/go-mp4"
	"github.com/timelinize/mediaimport/catalog"
)

// readMP4Metadata reads the boxes of an MP4 or QuickTime file. It is the
// fallback when no prober is available or the prober gave no result, so
// it fills the same ProbeResult.
//
// Relevant resources:
// - https://cconcolato.github.io/mp4ra/
// - https://developer.apple.com/library/archive/documentation/QuickTime/QTFF/QTFFChap2/qtff2.html
func readMP4Metadata(r io.ReadSeeker, assumed *catalog.ExplicitTimezone) (ProbeResult, error) {
	var res ProbeResult
	var creation uint64

	_, err := mp4.ReadBoxStructure(r, func(h *mp4.ReadHandle) (any, error) {
		if h.BoxInfo.IsSupportedType() && h.BoxInfo.Type.String() != "mdat" {
			box, _, err := h.ReadPayload()
			if err != nil {
				return nil, fmt.Errorf("reading payload from handle: %w", err)
			}

			switch b := box.(type) {
			case *mp4.Ftyp:
				brands := []string{string(b.MajorBrand[:])}
				for _, brand := range b.CompatibleBrands {
					brands = append(brands, string(brand.CompatibleBrand[:]))
				}
				for _, local := range localTimeBrands {
					if strings.Contains(strings.Join(brands, ","), local) {
						res.LocalTimeCreation = true
					}
				}

			case *mp4.Mvhd: // movie header (overall declarations)
				creation = b.GetCreationTime()
				if b.Timescale > 0 {
					d := catalog.Duration(b.GetDuration() / uint64(b.Timescale))
					res.Duration = &d
				}

			case *mp4.Tkhd: // track header
				if creation == 0 {
					creation = b.GetCreationTime()
				}
				// audio tracks have no size; the first visual track wins
				if w, h := int(b.GetWidthInt()), int(b.GetHeightInt()); w > 0 && h > 0 && res.Dimensions == nil {
					res.Dimensions = &catalog.Dimensions{Width: w, Height: h}
					res.HasVideo = true
				}
			}

			// traverse child nodes
			return h.Expand()
		} else if h.BoxInfo.Context.UnderUdta && h.BoxInfo.Type == [4]byte{'©', 'x', 'y', 'z'} {
			// Google and Apple cameras store location data in this box
			var buf bytes.Buffer
			if _, err := h.ReadData(&buf); err != nil {
				return nil, fmt.Errorf("reading ©xyz box data: %w", err)
			}
			if loc, err := mp4XYZCoordsToLocation(buf.String()); err == nil {
				res.Location = &loc
			}
		}

		return nil, nil
	})
	if err != nil {
		return res, err
	}

	if ts := isoIEC14496Timestamp(creation); !ts.IsZero() {
		res.CreationTime, res.Warnings = creationInZone(ts, res.LocalTimeCreation, assumed)
	}

	return res, nil
}

// mp4XYZCoordsToLocation parses the box called ©xyz which is formatted
// like "*data+50.1234-101.1234+000.000/": +Lat-Lon+Alt.
func mp4XYZCoordsToLocation(xyzRaw string) (catalog.Location, error) {
	matches := cXYZCoordsRegex.FindStringSubmatch(xyzRaw)
	const minMatches = 4
	if len(matches) < minMatches {
		return catalog.Location{}, fmt.Errorf("lat+lon not found in expected format in input string '%s'", xyzRaw)
	}

	latStr, lonStr := matches[1], matches[3]

	lat, err := strconv.ParseFloat(latStr, 64)
	if err != nil {
		return catalog.Location{}, fmt.Errorf("converting latitude from '%s': %w", latStr, err)
	}
	lon, err := strconv.ParseFloat(lonStr, 64)
	if err != nil {
		return catalog.Location{}, fmt.Errorf("converting longitude from '%s': %w", lonStr, err)
	}

	return catalog.Location{Latitude: lat, Longitude: lon}, nil
}

// isoIEC14496Timestamp converts the number of seconds since January 1, 1904
// (as defined by ISO/IEC 14496-12 5th Edition [2015], page 23) to a normal
// time.Time value based on Unix epoch. Zero stays zero.
func isoIEC14496Timestamp(ts uint64) time.Time {
	if ts <= mp4EpochToUnixEpoch {
		return time.Time{}
	}
	return time.Unix(int64(ts-mp4EpochToUnixEpoch), 0).UTC() //nolint:gosec // no creation time is that far in the future
}

// The difference between January 1, 1904 (the epoch used by MP4 file metadata)
// and January 1, 1970 (the Unix epoch) in seconds.
const mp4EpochToUnixEpoch uint64 = 2082844800

// Regex to extract lat-lon data from the ©xyz field of MP4 metadata which
// takes the form: "*data+50.1234-101.1234+000.000/" in North America.
// And sometimes the +000.000 is missing (sometimes there's just a trailing slash).
var cXYZCoordsRegex = regexp.MustCompile(`((\+|-)\d+\.\d+)((\+|-)\d+\.\d+)`)

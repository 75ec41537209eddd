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

package googlephotos

import (
	"encoding/json"
	"errors"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/maruel/natural"
	"github.com/timelinize/mediaimport/catalog"
)

// Sidecar is the JSON metadata file a Google Takeout export writes next to
// each media file, usually named like the media file plus ".json" (or
// ".supplemental-metadata.json", possibly truncated).
type Sidecar struct {
	Title                 string    `json:"title"`
	Description           string    `json:"description"`
	ImageViews            string    `json:"imageViews"`
	CreationTime          timestamp `json:"creationTime"`
	ModificationTime      timestamp `json:"modificationTime"`
	PhotoTakenTime        timestamp `json:"photoTakenTime"`
	PhotoLastModifiedTime timestamp `json:"photoLastModifiedTime"`
	GeoData               geoData   `json:"geoData"`
	GeoDataExif           geoData   `json:"geoDataExif"`
	People                []struct {
		Name string `json:"name"`
	} `json:"people"`
	URL                string `json:"url"`
	GooglePhotosOrigin struct {
		MobileUpload struct {
			DeviceFolder struct {
				LocalFolderName string `json:"localFolderName"`
			} `json:"deviceFolder"`
			DeviceType string `json:"deviceType"`
		} `json:"mobileUpload"`
	} `json:"googlePhotosOrigin"`
}

type timestamp struct {
	Timestamp string `json:"timestamp"` // seconds since the Unix epoch
	Formatted string `json:"formatted"`
}

type geoData struct {
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	Altitude      float64 `json:"altitude"`
	LatitudeSpan  float64 `json:"latitudeSpan"`
	LongitudeSpan float64 `json:"longitudeSpan"`
}

// location returns nil for the all-zero value Takeout writes when it
// has no location (0,0 is in the ocean off the coast of Africa).
func (g geoData) location() *catalog.Location {
	if g.Latitude == 0 && g.Longitude == 0 && g.Altitude == 0 {
		return nil
	}
	loc := &catalog.Location{Latitude: g.Latitude, Longitude: g.Longitude}
	if g.Altitude != 0 {
		alt := g.Altitude
		loc.Altitude = &alt
	}
	return loc
}

// ErrNotSidecar is returned by ParseSidecar for JSON files that do not
// describe a media item, like album metadata or print orders.
var ErrNotSidecar = errors.New("not a media metadata file")

// ParseSidecar decodes the content of a sidecar file.
func ParseSidecar(data []byte) (*Sidecar, error) {
	var s Sidecar
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding sidecar: %w", err)
	}
	// other JSON files in an export have no title
	if s.Title == "" {
		return nil, ErrNotSidecar
	}
	return &s, nil
}

// Location returns the location Google knows for the item, preferring the
// one edited in Google Photos over the one from the EXIF data.
func (s Sidecar) Location() *catalog.Location {
	if loc := s.GeoData.location(); loc != nil {
		return loc
	}
	return s.GeoDataExif.location()
}

var errNoTimestamp = errors.New("no timestamp available")

func (ts timestamp) parse() (time.Time, error) {
	if ts.Timestamp == "" {
		return time.Time{}, errNoTimestamp
	}
	secs, err := strconv.ParseInt(ts.Timestamp, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid timestamp %q: %w", ts.Timestamp, err)
	}
	return time.Unix(secs, 0).UTC(), nil
}

func (ts timestamp) time() *time.Time {
	t, err := ts.parse()
	if err != nil {
		return nil
	}
	return &t
}

// TakenTime returns when the photo was taken according to Google, in UTC.
// It has been reported by the PhotoStructure team that these timestamps can
// be wildly wrong, on the order of hours or days; embedded metadata is
// preferred when there is any.
func (s Sidecar) TakenTime() *time.Time { return s.PhotoTakenTime.time() }

// CreatedTime returns when the item was added to the library, in UTC. If a
// photo is in multiple albums, this can differ between the sidecars.
func (s Sidecar) CreatedTime() *time.Time { return s.CreationTime.time() }

// ModifiedTime returns when the item was last modified, in UTC.
func (s Sidecar) ModifiedTime() *time.Time {
	if t := s.ModificationTime.time(); t != nil {
		return t
	}
	return s.PhotoLastModifiedTime.time()
}

// AlbumMetadata is the metadata.json file of an album folder.
type AlbumMetadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Access      string    `json:"access"`
	Date        timestamp `json:"date"`
}

// AlbumMetadataFilename is the name of the album metadata file in each folder.
const AlbumMetadataFilename = "metadata.json"

// ParseAlbumMetadata decodes an album metadata file.
func ParseAlbumMetadata(data []byte) (AlbumMetadata, error) {
	var album AlbumMetadata
	if err := json.Unmarshal(data, &album); err != nil {
		return AlbumMetadata{}, fmt.Errorf("decoding album metadata: %w", err)
	}
	return album, nil
}

// Name returns the title of the album, or its description if it has no title.
func (a AlbumMetadata) Name() string {
	if a.Title != "" {
		return a.Title
	}
	return a.Description
}

// IsSidecarName reports whether a file in an export may be a sidecar.
func IsSidecarName(filename string) bool {
	return strings.EqualFold(path.Ext(filename), ".json") && path.Base(filename) != AlbumMetadataFilename
}

// SortTakeoutNames sorts the file names of one folder the way Google does
// before truncating long names: by length without extension, then in
// natural order (a1, a10, a20).
//
// The order matters: file names longer than 47 characters whose first 47
// characters are the same are ambiguous when pairing media files with
// their sidecars, because Google truncates them and appends a uniqueness
// suffix in the order it saw them.
func SortTakeoutNames(names []string) {
	sort.SliceStable(names, func(i, j int) bool {
		iName, jName := path.Base(names[i]), path.Base(names[j])
		iNameNoExt, jNameNoExt := strings.TrimSuffix(iName, path.Ext(iName)), strings.TrimSuffix(jName, path.Ext(jName))
		if len(iNameNoExt) != len(jNameNoExt) {
			return len(iNameNoExt) < len(jNameNoExt)
		}
		return natural.Less(iName, jName)
	})
}

// SidecarNamer maps sidecar files to the media files they describe. It is
// stateful: sidecars must be presented per folder in SortTakeoutNames order.
type SidecarNamer struct {
	truncatedNames map[string]int
}

// MediaPath returns the path of the media file in the export that is
// described by the sidecar at jsonPath.
//
// Google Photos export truncates long filenames. This uses a lexical
// approach with the help of some count state to assemble the name of the
// media file.
func (n *SidecarNamer) MediaPath(jsonPath string, s *Sidecar) string {
	if n.truncatedNames == nil {
		n.truncatedNames = make(map[string]int)
	}

	// target media file will be in the same directory
	dir := path.Dir(jsonPath)

	titleExt := path.Ext(s.Title)
	transformedTitle := strings.ReplaceAll(s.Title, "&", "_")
	transformedTitle = strings.ReplaceAll(transformedTitle, "?", "_")
	titleWithoutExt := strings.TrimSuffix(transformedTitle, titleExt)

	// Google truncates filenames longer than this (sans extension)
	const truncateAt = 47

	// if the filename is long enough, Google truncates it, so we need to
	// reconstruct it; this depends on the order we're reading the files,
	// because Google auto-increments a "uniqueness suffix" in the form of
	// "(N)" where N is how many times that truncated filename has already
	// appeared before this
	if len(titleWithoutExt) > truncateAt {
		truncatedTitle := titleWithoutExt[:truncateAt]
		truncatedTitleWithDir := path.Join(dir, truncatedTitle)
		fullTruncatedName := truncatedTitleWithDir + titleExt

		n.truncatedNames[fullTruncatedName]++
		seenCount := n.truncatedNames[fullTruncatedName]

		// the first instance doesn't have a uniqueness suffix, the second
		// one has "(1)", third has "(2)", etc.
		if seenCount == 1 {
			return fullTruncatedName
		}
		return fmt.Sprintf("%s(%d)%s", truncatedTitleWithDir, seenCount-1, titleExt)
	}

	return path.Join(dir, s.Title)
}

// DuplicateSuffix is appended by Takeout, before the extension, to the
// second copy of a file name in a folder.
const DuplicateSuffix = "(1)"

// UnsuffixedName returns the name of the file whose duplicate is filename,
// or false if filename does not carry the duplicate suffix.
func UnsuffixedName(filename string) (string, bool) {
	ext := path.Ext(filename)
	stem, ok := strings.CutSuffix(strings.TrimSuffix(filename, ext), DuplicateSuffix)
	if !ok || stem == "" || strings.HasSuffix(stem, "/") {
		return "", false
	}
	return stem + ext, true
}

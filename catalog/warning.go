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

package catalog

import (
	"fmt"
	"sort"

	"github.com/maruel/natural"
)

// WarningKind classifies a non-fatal anomaly found during an import.
// The declaration order is also the display order.
type WarningKind int

// Warning kinds.
const (
	WarningExifDecode WarningKind = iota
	WarningExifAnalyze
	WarningContainerSplitDuplicate
	WarningVideoAnalysis
	WarningMissingDimensions
	WarningMissingDuration
	WarningReverseGeocodeFailed
	WarningDuplicateRemoteFilename
	WarningMissingRemoteReference
	WarningNoExternalMetadata
)

var warningKindNames = map[WarningKind]string{
	WarningExifDecode:              "ExifDecode",
	WarningExifAnalyze:             "ExifAnalyze",
	WarningContainerSplitDuplicate: "ContainerSplitDuplicate",
	WarningVideoAnalysis:           "VideoAnalysis",
	WarningMissingDimensions:       "MissingDimensions",
	WarningMissingDuration:         "MissingDuration",
	WarningReverseGeocodeFailed:    "ReverseGeocodeFailed",
	WarningDuplicateRemoteFilename: "DuplicateRemoteFilename",
	WarningMissingRemoteReference:  "MissingRemoteReference",
	WarningNoExternalMetadata:      "NoExternalMetadata",
}

func (k WarningKind) String() string {
	if name, ok := warningKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("WarningKind(%d)", int(k))
}

// MarshalText implements encoding.TextMarshaler.
func (k WarningKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Warning is an auditable note about an ambiguous or degraded resolution.
type Warning struct {
	Kind     WarningKind `json:"kind"`
	Filename string      `json:"filename"`
	Details  string      `json:"details"`
}

func (w Warning) String() string {
	return fmt.Sprintf("%s: %s: %s", w.Filename, w.Kind, w.Details)
}

// Warnings accumulates warnings. Nothing added is ever dropped.
type Warnings []Warning

// Add appends a warning with formatted details.
func (ws *Warnings) Add(kind WarningKind, filename, format string, args ...any) {
	*ws = append(*ws, Warning{
		Kind:     kind,
		Filename: filename,
		Details:  fmt.Sprintf(format, args...),
	})
}

// SortWarnings orders warnings by kind, then by filename in natural order.
// The sort is stable so details for the same file keep their order.
func SortWarnings(ws []Warning) {
	sort.SliceStable(ws, func(i, j int) bool {
		if ws[i].Kind != ws[j].Kind {
			return ws[i].Kind < ws[j].Kind
		}
		return natural.Less(ws[i].Filename, ws[j].Filename)
	})
}

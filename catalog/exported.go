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
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ExportedMetadata is the JSON file a catalog export writes next to each
// exported media file, named like the media file plus ".json". Importing
// an export restores what the catalog knew about the file.
type ExportedMetadata struct {
	CreatedTime  *time.Time         `json:"created_time"`
	ModifiedTime *time.Time         `json:"modified_time"`
	ActivityTime *time.Time         `json:"activity_time"`
	Title        string             `json:"title"`
	Notes        string             `json:"notes"`
	Location     *Location          `json:"location"`
	Attachment   ExportedAttachment `json:"attachment"`
	Tags         []ExportedTag      `json:"tags"`
}

// ExportedAttachment describes the exported media file itself.
type ExportedAttachment struct {
	Filename string     `json:"filename"`
	Created  *time.Time `json:"created"`
	Modified *time.Time `json:"modified"`
	MIMEType string     `json:"mime"`
	Size     int64      `json:"size"`
	Hash     string     `json:"hash"`
}

// ExportedTag is a tag of an exported record. Kind is the name of a
// TagKind, like "person".
type ExportedTag struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// ErrNotExportedMetadata is returned by ParseExportedMetadata for JSON
// files that were not written by a catalog export.
var ErrNotExportedMetadata = errors.New("not exported catalog metadata")

// ParseExportedMetadata decodes an exported metadata file.
func ParseExportedMetadata(data []byte) (*ExportedMetadata, error) {
	var probe struct {
		Attachment *ExportedAttachment `json:"attachment"`
	}
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, fmt.Errorf("decoding exported metadata: %w", err)
	}
	if probe.Attachment == nil || probe.Attachment.Filename == "" {
		return nil, ErrNotExportedMetadata
	}

	var m ExportedMetadata
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("decoding exported metadata: %w", err)
	}
	return &m, nil
}

// RecordTags returns the tags of m. Unknown kinds become labels.
func (m ExportedMetadata) RecordTags() []Tag {
	tags := make([]Tag, 0, len(m.Tags))
	for _, t := range m.Tags {
		kind, _ := ParseTagKind(t.Kind)
		tags = append(tags, Tag{Name: t.Name, Kind: kind})
	}
	return tags
}

// ParseTagKind returns the kind named s, as returned by TagKind.String.
func ParseTagKind(s string) (TagKind, bool) {
	for k := TagLabel; k <= TagActivity; k++ {
		if k.String() == s {
			return k, true
		}
	}
	return TagLabel, false
}

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

// Package catalog defines the normalized records produced by an import,
// the warnings collected while producing them, and the contract through
// which records are persisted.
package catalog

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"
)

// Location is a point on Earth, optionally with an altitude in meters.
type Location struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Altitude  *float64 `json:"altitude,omitempty"`
}

func (l Location) String() string {
	if l.Altitude != nil {
		return fmt.Sprintf("%.6f,%.6f (%.1fm)", l.Latitude, l.Longitude, *l.Altitude)
	}
	return fmt.Sprintf("%.6f,%.6f", l.Latitude, l.Longitude)
}

// Orientation describes how the stored pixels must be rotated to be
// displayed upright.
type Orientation int

// The four supported orientations. The zero value means "unknown".
const (
	OrientationStraight Orientation = iota + 1
	OrientationRotatedRight
	OrientationUpsideDown
	OrientationRotatedLeft
)

func (o Orientation) String() string {
	switch o {
	case OrientationStraight:
		return "straight"
	case OrientationRotatedRight:
		return "rotated right"
	case OrientationUpsideDown:
		return "upside down"
	case OrientationRotatedLeft:
		return "rotated left"
	}
	return "undefined"
}

// Dimensions are the pixel dimensions of an image or video frame.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// AdjustForOrientation returns the dimensions as displayed after the
// orientation is applied; sideways orientations swap width and height.
func (d Dimensions) AdjustForOrientation(o *Orientation) Dimensions {
	if o != nil && (*o == OrientationRotatedLeft || *o == OrientationRotatedRight) {
		return Dimensions{Width: d.Height, Height: d.Width}
	}
	return d
}

func (d Dimensions) String() string { return fmt.Sprintf("%dx%d", d.Width, d.Height) }

// Duration is a media duration in whole seconds.
type Duration int

func (d Duration) String() string {
	s := int(d)
	return fmt.Sprintf("%d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// TagKind classifies a tag.
type TagKind int

// Tag kinds.
const (
	TagLabel TagKind = iota
	TagLocation
	TagPerson
	TagEvent
	TagList
	TagActivity
)

func (k TagKind) String() string {
	switch k {
	case TagLocation:
		return "location"
	case TagPerson:
		return "person"
	case TagEvent:
		return "event"
	case TagList:
		return "list"
	case TagActivity:
		return "activity"
	}
	return "label"
}

// Names of tags managed by the system rather than by users.
const (
	TagNameUnsorted = "Unsorted"
	TagNameTrash    = "Trash"
)

// Tag is a named classification attached to a record.
type Tag struct {
	Name string  `json:"name"`
	Kind TagKind `json:"kind"`
}

// NormalizeTagName returns the key used to compare tag names.
func NormalizeTagName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ExternalReference links a record to an item in a remote service.
type ExternalReference struct {
	Service string `json:"service"`
	ID      string `json:"id"`
}

// ServiceGooglePhotos identifies references into a Google Photos library.
const ServiceGooglePhotos = "google_photos"

// URL returns a link to the referenced item, or an empty string if the
// service is not known.
func (ref ExternalReference) URL() string {
	if ref.Service == ServiceGooglePhotos {
		return "https://photos.google.com/lr/photo/" + ref.ID
	}
	return ""
}

// Attachment is the media file belonging to a record.
type Attachment struct {
	Filename    string       `json:"filename"`
	Created     time.Time    `json:"created"`
	Modified    time.Time    `json:"modified"`
	MIMEType    string       `json:"mime_type"`
	Size        int64        `json:"size"`
	Hash        []byte       `json:"hash,omitempty"`
	Orientation *Orientation `json:"orientation,omitempty"`
	Dimensions  *Dimensions  `json:"dimensions,omitempty"`
	Duration    *Duration    `json:"duration,omitempty"`
	Thumbhash   []byte       `json:"thumbhash,omitempty"`

	Content []byte `json:"-"`
}

// Record is one normalized catalog entry, ready to be stored.
type Record struct {
	ID          uuid.UUID          `json:"id"`
	Title       string             `json:"title"`
	Notes       string             `json:"notes,omitempty"`
	Created     *time.Time         `json:"created,omitempty"`
	Activity    *time.Time         `json:"activity,omitempty"`
	Location    *Location          `json:"location,omitempty"`
	Tags        []Tag              `json:"tags,omitempty"`
	ExternalRef *ExternalReference `json:"external_ref,omitempty"`
	Attachment  Attachment         `json:"attachment"`
}

// AddTag appends tag unless a tag with the same kind and normalized
// name is already present.
func (r *Record) AddTag(tag Tag) {
	norm := NormalizeTagName(tag.Name)
	if norm == "" {
		return
	}
	for _, existing := range r.Tags {
		if existing.Kind == tag.Kind && NormalizeTagName(existing.Name) == norm {
			return
		}
	}
	r.Tags = append(r.Tags, tag)
}

// HasTag reports whether the record carries a tag with the given name.
func (r *Record) HasTag(name string) bool {
	norm := NormalizeTagName(name)
	for _, t := range r.Tags {
		if NormalizeTagName(t.Name) == norm {
			return true
		}
	}
	return false
}

// ContentHash returns the BLAKE3 digest of content.
func ContentHash(content []byte) []byte {
	sum := blake3.Sum256(content)
	return sum[:]
}

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
)

/*
	Motion pictures ("live photos" and similar) are short videos some cameras
	capture along with a still. Google and Samsung cameras append the video to
	the picture file in an MP4 container; Google Photos exports sometimes hold
	the video alone under the picture's name.

	There is no standard marker, so we look for the header of the MP4
	container: the "ftyp" box type followed by a known brand. The box (and
	thus the video) starts 4 bytes earlier, at its size field.
*/

// SplitKind classifies what an image file contains.
type SplitKind int

// Split kinds.
const (
	SplitNeither SplitKind = iota
	SplitImageOnly
	SplitVideoOnly
	SplitBoth
)

func (k SplitKind) String() string {
	switch k {
	case SplitImageOnly:
		return "image only"
	case SplitVideoOnly:
		return "video only"
	case SplitBoth:
		return "both"
	}
	return "neither"
}

// ContainerSplit describes whether a still image container also holds an
// appended video stream. For SplitBoth, VideoOffset is the index of the
// first video byte; it is always within (0, len(data)).
type ContainerSplit struct {
	Kind        SplitKind
	VideoOffset int
}

func (cs ContainerSplit) String() string {
	if cs.Kind == SplitBoth {
		return fmt.Sprintf("both (video at %d)", cs.VideoOffset)
	}
	return cs.Kind.String()
}

// Slice returns the image prefix and the video suffix of data.
func (cs ContainerSplit) Slice(data []byte) (image, video []byte) {
	switch cs.Kind {
	case SplitImageOnly:
		return data, nil
	case SplitVideoOnly:
		return nil, data
	case SplitBoth:
		return data[:cs.VideoOffset], data[cs.VideoOffset:]
	}
	return nil, nil
}

// Type tags of the video containers we recognize. "ftypisom" is what
// current Google cameras write; "ftypmp4" was used by them for years.
var videoSignatures = [][]byte{
	[]byte("ftypisom"),
	[]byte("ftypmp42"),
	[]byte("ftypmp4"),
	[]byte("ftypqt"),
}

// the container starts with a 4-byte box size before the type tag
const boxSizeLen = 4

// DetectSplit classifies the content of an image file. Files without a
// recognized image extension are SplitNeither.
func DetectSplit(filename string, data []byte) ContainerSplit {
	if kind, ok := KindByExtension(filename); !ok || kind != KindImage {
		return ContainerSplit{Kind: SplitNeither}
	}

	idx := -1
	for _, sig := range videoSignatures {
		if i := bytes.Index(data, sig); i >= 0 && (idx < 0 || i < idx) {
			idx = i
		}
	}

	switch {
	case idx < boxSizeLen:
		// absent, or too early to have a size field in front of it
		return ContainerSplit{Kind: SplitImageOnly}
	case idx == boxSizeLen:
		return ContainerSplit{Kind: SplitVideoOnly}
	default:
		return ContainerSplit{Kind: SplitBoth, VideoOffset: idx - boxSizeLen}
	}
}

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
	"testing"
)

func TestDetectSplit(t *testing.T) {
	still := bytes.Repeat([]byte{0xAB}, 100)
	box := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)

	for i, test := range []struct {
		filename string
		data     []byte
		expect   ContainerSplit
	}{
		{"still.jpg", still, ContainerSplit{Kind: SplitImageOnly}},
		{"video.jpg", box, ContainerSplit{Kind: SplitVideoOnly}},
		{"motion.jpg", append(append([]byte{}, still...), box...), ContainerSplit{Kind: SplitBoth, VideoOffset: 100}},
		{"MOTION.JPG", append(append([]byte{}, still...), box...), ContainerSplit{Kind: SplitBoth, VideoOffset: 100}},
		{"old.jpg", append(append([]byte{}, still[:10]...), append([]byte{0, 0, 0, 24}, []byte("ftypmp42")...)...), ContainerSplit{Kind: SplitBoth, VideoOffset: 10}},
		{"early.jpg", []byte("xftypisom"), ContainerSplit{Kind: SplitImageOnly}}, // no room for a size field
		{"movie.mp4", box, ContainerSplit{Kind: SplitNeither}},
		{"notes.txt", still, ContainerSplit{Kind: SplitNeither}},
		{"empty.png", nil, ContainerSplit{Kind: SplitImageOnly}},
	} {
		actual := DetectSplit(test.filename, test.data)
		if actual != test.expect {
			t.Errorf("Test %d (%s): Expected %s but got %s", i, test.filename, test.expect, actual)
		}
	}
}

func TestDetectSplitEarliestSignature(t *testing.T) {
	data := append(bytes.Repeat([]byte{1}, 50), []byte("....ftypmp42")...)
	data = append(data, []byte("....ftypisom")...)
	split := DetectSplit("x.jpg", data)
	if split.Kind != SplitBoth || split.VideoOffset != 50 {
		t.Errorf("Expected both at 50 but got %s", split)
	}
}

func TestContainerSplitSlice(t *testing.T) {
	still := bytes.Repeat([]byte{0xAB}, 100)
	box := append([]byte{0, 0, 0, 24}, []byte("ftypisom")...)
	data := append(append([]byte{}, still...), box...)

	split := DetectSplit("motion.jpg", data)
	image, video := split.Slice(data)
	if !bytes.Equal(image, still) {
		t.Errorf("Expected image prefix of %d bytes but got %d", len(still), len(image))
	}
	if !bytes.Equal(video, box) {
		t.Errorf("Expected video suffix %q but got %q", box, video)
	}

	// the prefix is a plain image
	if again := DetectSplit("motion.jpg", image); again.Kind != SplitImageOnly && again.Kind != SplitNeither {
		t.Errorf("Expected image prefix to be image only, got %s", again)
	}

	// the suffix is a video by itself
	if again := DetectSplit("motion.jpg", video); again.Kind != SplitVideoOnly {
		t.Errorf("Expected video suffix to be video only, got %s", again)
	}

	if img, vid := (ContainerSplit{Kind: SplitNeither}).Slice(data); img != nil || vid != nil {
		t.Errorf("Expected nothing from neither split")
	}
}

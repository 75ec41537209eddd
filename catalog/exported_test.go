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
	"errors"
	"testing"
	"time"
)

func TestParseExportedMetadata(t *testing.T) {
	data := []byte(`{
		"created_time": "2019-01-05T08:00:00+10:00",
		"modified_time": "2019-01-06T08:00:00+10:00",
		"activity_time": "2018-12-31T23:59:30+11:00",
		"title": "New year",
		"notes": "Fireworks from the bridge",
		"location": {"latitude": -33.852, "longitude": 151.211},
		"attachment": {
			"filename": "PXL_0001.jpg",
			"created": "2019-01-05T08:00:00+10:00",
			"modified": "2019-01-05T08:00:00+10:00",
			"mime": "image/jpeg",
			"size": 1024,
			"hash": "af1349b9"
		},
		"tags": [
			{"name": "Alice", "kind": "person"},
			{"name": "Sydney", "kind": "location"},
			{"name": "favourite", "kind": "mystery"}
		]
	}`)

	m, err := ParseExportedMetadata(data)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if m.Title != "New year" || m.Notes != "Fireworks from the bridge" {
		t.Errorf("Expected title and notes but got '%s' and '%s'", m.Title, m.Notes)
	}
	if expect := "2018-12-31T23:59:30+11:00"; m.ActivityTime == nil || m.ActivityTime.Format(time.RFC3339) != expect {
		t.Errorf("Expected activity time '%s' but got %v", expect, m.ActivityTime)
	}
	if m.Location == nil || m.Location.Latitude != -33.852 {
		t.Errorf("Expected location but got %v", m.Location)
	}
	if m.Attachment.Filename != "PXL_0001.jpg" || m.Attachment.Size != 1024 {
		t.Errorf("Expected attachment PXL_0001.jpg of 1024 bytes but got %+v", m.Attachment)
	}

	expectTags := []Tag{
		{Name: "Alice", Kind: TagPerson},
		{Name: "Sydney", Kind: TagLocation},
		{Name: "favourite", Kind: TagLabel},
	}
	tags := m.RecordTags()
	if len(tags) != len(expectTags) {
		t.Fatalf("Expected %d tags but got %v", len(expectTags), tags)
	}
	for i, expect := range expectTags {
		if tags[i] != expect {
			t.Errorf("Test %d: Expected %+v but got %+v", i, expect, tags[i])
		}
	}
}

func TestParseExportedMetadataRejects(t *testing.T) {
	for i, test := range []struct {
		input    string
		notOurs  bool
		hasError bool
	}{
		{input: `{"title": "IMG_1.jpg", "photoTakenTime": {"timestamp": "1589709600"}}`, notOurs: true, hasError: true},
		{input: `{"attachment": {"size": 10}}`, notOurs: true, hasError: true},
		{input: `{"attachment": `, hasError: true},
		{input: `{"attachment": {"filename": "a.jpg"}, "activity_time": "yesterday"}`, hasError: true},
	} {
		_, err := ParseExportedMetadata([]byte(test.input))
		if test.hasError != (err != nil) {
			t.Errorf("Test %d: Expected error=%v but got %v", i, test.hasError, err)
		}
		if test.notOurs != errors.Is(err, ErrNotExportedMetadata) {
			t.Errorf("Test %d: Expected not-exported=%v but got %v", i, test.notOurs, err)
		}
	}
}

func TestParseTagKind(t *testing.T) {
	for k := TagLabel; k <= TagActivity; k++ {
		actual, ok := ParseTagKind(k.String())
		if !ok || actual != k {
			t.Errorf("Expected %s to parse back but got %s (%v)", k, actual, ok)
		}
	}
	if _, ok := ParseTagKind("nope"); ok {
		t.Errorf("Expected unknown kind to be rejected")
	}
}

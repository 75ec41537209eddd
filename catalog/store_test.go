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
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestSQLiteStoreAddRecord(t *testing.T) {
	ctx := context.Background()
	store, err := OpenSQLiteStore(ctx, filepath.Join(t.TempDir(), "catalog.db"))
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	defer store.Close()

	if store.ID() == uuid.Nil {
		t.Errorf("Expected catalog to be assigned an ID")
	}

	activity := time.Date(2018, 3, 2, 19, 20, 9, 0, time.FixedZone("+10:00", 36000))
	orientation := OrientationRotatedRight
	rec := &Record{
		Title:    "IMG_0001.jpg",
		Activity: &activity,
		Location: &Location{Latitude: -27.47, Longitude: 153.02},
		Attachment: Attachment{
			Filename:    "IMG_0001.jpg",
			MIMEType:    "image/jpeg",
			Size:        3,
			Hash:        ContentHash([]byte("abc")),
			Orientation: &orientation,
			Dimensions:  &Dimensions{Width: 3000, Height: 4000},
			Content:     []byte("abc"),
		},
	}
	rec.AddTag(Tag{Name: "Brisbane", Kind: TagLocation})
	rec.AddTag(Tag{Name: TagNameUnsorted, Kind: TagLabel})

	if err := store.AddRecord(ctx, rec); err != nil {
		t.Fatalf("adding record: %v", err)
	}
	if rec.ID == uuid.Nil {
		t.Errorf("Expected record to be assigned an ID")
	}

	second := &Record{ID: uuid.New(), Title: "IMG_0002.jpg", Attachment: Attachment{Filename: "IMG_0002.jpg", MIMEType: "image/jpeg"}}
	second.AddTag(Tag{Name: "unsorted", Kind: TagLabel})
	if err := store.AddRecord(ctx, second); err != nil {
		t.Fatalf("adding second record: %v", err)
	}

	count, err := store.RecordCount(ctx)
	if err != nil {
		t.Fatalf("counting records: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records but got %d", count)
	}

	names, err := store.TagNames(ctx, rec.ID)
	if err != nil {
		t.Fatalf("listing tags: %v", err)
	}
	if len(names) != 2 || names[0] != "Brisbane" || names[1] != TagNameUnsorted {
		t.Errorf("Expected [Brisbane Unsorted] but got %v", names)
	}

	// the second record shares the normalized Unsorted tag
	names, err = store.TagNames(ctx, second.ID)
	if err != nil {
		t.Fatalf("listing tags: %v", err)
	}
	if len(names) != 1 || names[0] != TagNameUnsorted {
		t.Errorf("Expected [Unsorted] but got %v", names)
	}
}

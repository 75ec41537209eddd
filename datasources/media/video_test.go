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
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/internal/testhelpers"
	"github.com/timelinize/mediaimport/timezone"
)

type fakeProber struct {
	t      *testing.T
	expect []byte
	output string
	err    error
}

func (p fakeProber) Probe(_ context.Context, filename string) (string, error) {
	got, err := os.ReadFile(filename)
	if err != nil {
		p.t.Errorf("Reading staged file: %v", err)
	} else if !bytes.Equal(got, p.expect) {
		p.t.Errorf("Expected staged file to hold the video bytes")
	}
	return p.output, p.err
}

type fakeExtractor struct {
	t    *testing.T
	size *catalog.Dimensions
	err  error
}

func (e fakeExtractor) ExtractFrame(_ context.Context, _ string, size catalog.Dimensions) ([]byte, error) {
	*e.size = size
	if e.err != nil {
		return nil, e.err
	}
	return testhelpers.JPEG(e.t, size.Width, size.Height), nil
}

func TestAnalyzeVideoWithProber(t *testing.T) {
	data := []byte("not really a video")
	var size catalog.Dimensions

	meta, err := AnalyzeVideo(context.Background(), data, "PXL_20230704_183012.mp4", VideoOptions{
		Prober:           fakeProber{t: t, expect: data, output: sampleProbeOutput},
		Extractor:        fakeExtractor{t: t, size: &size},
		Thumbnail:        true,
		ThumbnailMaxEdge: 192,
		TempDir:          t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if meta == nil {
		t.Fatal("Expected metadata")
	}
	if meta.Source != "ffprobe" {
		t.Errorf("Expected ffprobe source but got '%s'", meta.Source)
	}

	// rotated 90 degrees, so the frame is portrait
	if expect := (catalog.Dimensions{Width: 108, Height: 192}); size != expect {
		t.Errorf("Expected frame size %s but got %s", expect, size)
	}
	if len(meta.Thumbnail) == 0 || len(meta.Thumbhash) <= 4 {
		t.Errorf("Expected thumbnail and thumbhash")
	}
}

func TestAnalyzeVideoLookupCorrectsZone(t *testing.T) {
	data := []byte("video")
	lookup := timezone.LookupFunc(func(_ context.Context, loc catalog.Location, _ time.Time) (timezone.Zone, error) {
		if loc.Latitude != 47.6062 {
			t.Errorf("Expected lookup at the video's location, got %v", loc)
		}
		return timezone.Zone{Offset: -7 * 3600, ID: "America/Los_Angeles"}, nil
	})

	meta, err := AnalyzeVideo(context.Background(), data, "v.mp4", VideoOptions{
		Prober:  fakeProber{t: t, expect: data, output: sampleProbeOutput},
		Lookup:  lookup,
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if meta.CreationTime == nil || meta.CreationTime.Format(time.RFC3339) != "2023-07-04T11:30:12-07:00" {
		t.Errorf("Expected creation time in looked up zone but got %v", meta.CreationTime)
	}
	if meta.Thumbnail != nil {
		t.Errorf("Did not expect a thumbnail")
	}

	failing := timezone.LookupFunc(func(context.Context, catalog.Location, time.Time) (timezone.Zone, error) {
		return timezone.Zone{}, errors.New("offline")
	})
	meta, err = AnalyzeVideo(context.Background(), data, "v.mp4", VideoOptions{
		Prober:  fakeProber{t: t, expect: data, output: sampleProbeOutput},
		Lookup:  failing,
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if meta.CreationTime == nil || meta.CreationTime.Location() != time.UTC {
		t.Errorf("Expected UTC creation time after failed lookup, got %v", meta.CreationTime)
	}
	if len(meta.Warnings) != 1 {
		t.Errorf("Expected one warning but got %v", meta.Warnings)
	}
}

func TestAnalyzeVideoNoResult(t *testing.T) {
	data := []byte("garbage")
	meta, err := AnalyzeVideo(context.Background(), data, "v.mov", VideoOptions{
		Prober:  fakeProber{t: t, expect: data, err: ErrNoResult},
		TempDir: t.TempDir(),
	})
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if meta != nil {
		t.Errorf("Expected no metadata but got %+v", meta)
	}
}

func TestAnalyzeVideoThumbnailFailure(t *testing.T) {
	data := []byte("video")
	var size catalog.Dimensions
	meta, err := AnalyzeVideo(context.Background(), data, "v.mp4", VideoOptions{
		Prober:    fakeProber{t: t, expect: data, output: sampleProbeOutput},
		Extractor: fakeExtractor{t: t, size: &size, err: ErrNoResult},
		Thumbnail: true,
		TempDir:   t.TempDir(),
	})
	if err != nil {
		t.Fatal(err)
	}
	if meta == nil || meta.Thumbnail != nil || meta.Thumbhash != nil {
		t.Errorf("Expected metadata without thumbnail, got %+v", meta)
	}
	if expect := (catalog.Dimensions{Width: 406, Height: 720}); size != expect {
		t.Errorf("Expected default maximum edge %s but got %s", expect, size)
	}
}

func TestAnalyzeVideoStagingError(t *testing.T) {
	_, err := AnalyzeVideo(context.Background(), nil, "v.mp4", VideoOptions{
		TempDir: "/nonexistent/directory/for/staging",
	})
	if err == nil {
		t.Errorf("Expected error staging temporary file")
	}
}

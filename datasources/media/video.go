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
	"fmt"
	"os"
	"os/exec"
	"path"
	"strconv"

	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/timezone"
	"go.uber.org/zap"
)

// ErrNoResult is returned by collaborators that ran but produced nothing usable.
var ErrNoResult = errors.New("no result")

// Prober runs a media prober on a file and returns its diagnostic text.
type Prober interface {
	Probe(ctx context.Context, filename string) (string, error)
}

// FrameExtractor extracts one frame of a video as a JPEG image scaled to size.
type FrameExtractor interface {
	ExtractFrame(ctx context.Context, filename string, size catalog.Dimensions) ([]byte, error)
}

// FFmpeg runs the ffprobe and ffmpeg commands. It implements Prober and
// FrameExtractor.
type FFmpeg struct {
	ProbeCommand   string `json:"ffprobe,omitempty"` // default "ffprobe"
	ExtractCommand string `json:"ffmpeg,omitempty"`  // default "ffmpeg"
}

// Probe implements Prober. A non-zero exit status or empty output
// returns ErrNoResult.
func (f FFmpeg) Probe(ctx context.Context, filename string) (string, error) {
	command := f.ProbeCommand
	if command == "" {
		command = "ffprobe"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, command, "-hide_banner", filename)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%w: %s: %w", ErrNoResult, command, err)
	}
	if stderr.Len() == 0 {
		return "", fmt.Errorf("%w: %s printed nothing", ErrNoResult, command)
	}
	return stderr.String(), nil
}

// ExtractFrame implements FrameExtractor.
func (f FFmpeg) ExtractFrame(ctx context.Context, filename string, size catalog.Dimensions) ([]byte, error) {
	command := f.ExtractCommand
	if command == "" {
		command = "ffmpeg"
	}
	var stdout bytes.Buffer
	cmd := exec.CommandContext(ctx, command,
		"-v", "error",
		"-ss", "0",
		"-i", filename,
		"-vf", "scale="+strconv.Itoa(size.Width)+":"+strconv.Itoa(size.Height),
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-",
	)
	cmd.Stdout = &stdout
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoResult, command, err)
	}
	if stdout.Len() == 0 {
		return nil, fmt.Errorf("%w: %s extracted no frame", ErrNoResult, command)
	}
	return stdout.Bytes(), nil
}

// VideoOptions configure AnalyzeVideo. All fields are optional.
type VideoOptions struct {
	Prober    Prober
	Extractor FrameExtractor

	// Used when the container is known to hold local creation times.
	AssumedTimezone *catalog.ExplicitTimezone

	// Corrects the creation time to the zone at the video's location.
	Lookup timezone.Lookup

	// If set, a thumbnail no larger than ThumbnailMaxEdge is extracted.
	Thumbnail        bool
	ThumbnailMaxEdge int

	// Where temporary files are written; defaults to os.TempDir().
	TempDir string

	Logger *zap.Logger
}

// DefaultThumbnailMaxEdge is used when VideoOptions.ThumbnailMaxEdge is zero.
const DefaultThumbnailMaxEdge = 720

// VideoMetadata is the result of analyzing a video.
type VideoMetadata struct {
	ProbeResult

	// The source of the result: "ffprobe" or "mp4".
	Source string

	Thumbnail []byte // JPEG
	Thumbhash []byte
}

// AnalyzeVideo extracts metadata from a video held in data. The name of the
// file is only used for its extension and for logging. If neither the
// prober nor the MP4 box reader understand the file, nil is returned with no
// error; errors are reserved for failures to stage the temporary file.
func AnalyzeVideo(ctx context.Context, data []byte, filename string, opts VideoOptions) (*VideoMetadata, error) {
	logger := opts.Logger
	if logger == nil {
		logger = catalog.Log.Named("media")
	}
	logger = logger.With(zap.String("filename", filename))

	tmp, err := os.CreateTemp(opts.TempDir, "mediaimport-*"+path.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("creating temporary file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, fmt.Errorf("writing temporary file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("closing temporary file: %w", err)
	}

	var meta *VideoMetadata

	if opts.Prober != nil {
		text, err := opts.Prober.Probe(ctx, tmpName)
		if err != nil {
			logger.Debug("probing video", zap.Error(err))
		} else {
			meta = &VideoMetadata{
				ProbeResult: ParseProbeOutput(text, opts.AssumedTimezone),
				Source:      "ffprobe",
			}
		}
	}

	if meta == nil {
		res, err := readMP4Metadata(bytes.NewReader(data), opts.AssumedTimezone)
		if err != nil || (res.Duration == nil && res.Dimensions == nil && res.CreationTime == nil) {
			logger.Debug("reading MP4 boxes", zap.Error(err))
			return nil, nil
		}
		meta = &VideoMetadata{ProbeResult: res, Source: "mp4"}
	}

	if opts.Lookup != nil && meta.Location != nil && meta.CreationTime != nil {
		zone, err := opts.Lookup.Lookup(ctx, *meta.Location, *meta.CreationTime)
		if err != nil {
			meta.Warnings = append(meta.Warnings, fmt.Sprintf("timezone lookup for %s failed: %v", meta.Location, err))
		} else {
			t := meta.CreationTime.In(zone.Location())
			meta.CreationTime = &t
		}
	}

	if opts.Thumbnail && opts.Extractor != nil && meta.HasVideo && meta.Dimensions != nil {
		maxEdge := opts.ThumbnailMaxEdge
		if maxEdge <= 0 {
			maxEdge = DefaultThumbnailMaxEdge
		}
		size := FitWithin(meta.Dimensions.AdjustForOrientation(meta.Orientation), maxEdge)
		frame, err := opts.Extractor.ExtractFrame(ctx, tmpName, size)
		if err != nil {
			logger.Debug("no thumbnail", zap.Error(err))
		} else if hash, err := Thumbhash(frame); err != nil {
			logger.Debug("no thumbhash", zap.Error(err))
		} else {
			meta.Thumbnail, meta.Thumbhash = frame, hash
		}
	}

	return meta, nil
}

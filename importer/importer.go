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

// Package importer turns scanned media files into catalog records by
// fusing their embedded metadata, takeout sidecars, lookups and the
// remote photo library.
package importer

import (
	"context"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/datasources/googlephotos"
	"github.com/timelinize/mediaimport/datasources/media"
	"github.com/timelinize/mediaimport/internal/googlemaps"
	"github.com/timelinize/mediaimport/timezone"
	"go.uber.org/zap"
)

// ErrUnsupportedType is returned for files that are neither images nor videos.
var ErrUnsupportedType = errors.New("unsupported media type")

// Geocoder resolves a location into place names.
type Geocoder interface {
	ReverseGeocode(ctx context.Context, loc catalog.Location) (*googlemaps.Geocode, error)
}

// Importer holds the collaborators of an import. Only Store is required
// by Run; every other field is optional.
type Importer struct {
	Options catalog.ImportOptions

	Lookup    timezone.Lookup
	Geocoder  Geocoder
	Prober    media.Prober
	Extractor media.FrameExtractor

	// If set, video thumbnails are extracted and hashed.
	Thumbnails bool

	// Where video files are staged for the prober; defaults to os.TempDir().
	TempDir string

	// If set, records are linked to entries of the remote library.
	Remote *googlephotos.Index

	Store catalog.Store

	// Receives every tag given to an imported record.
	RecentTags *catalog.RecentTags

	Progress *catalog.Progress
	Logger   *zap.Logger
}

// File is a media file to import.
type File struct {
	// Unique path of the file within its scan; used in warnings.
	Path string

	Content []byte
	ModTime time.Time

	// Takeout metadata describing the file, if any.
	Sidecar *googlephotos.Sidecar

	// Metadata written by an earlier catalog export of the file, if any.
	Exported *catalog.ExportedMetadata

	// Name of the album the file is in, if any.
	Album string
}

func (imp *Importer) logger() *zap.Logger {
	if imp.Logger != nil {
		return imp.Logger
	}
	return catalog.Log.Named("importer")
}

// ProcessFile fuses everything that can be learned about f into a record.
// Anomalies that do not prevent the import are returned as warnings.
func (imp *Importer) ProcessFile(ctx context.Context, f File) (*catalog.Record, catalog.Warnings, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	p := &fileProcessor{
		imp:  imp,
		file: f,
		name: path.Base(f.Path),
		log:  imp.logger().With(zap.String("filename", f.Path)),
	}

	p.mimeType = media.MIMEType(p.name)
	if p.mimeType == "" {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnsupportedType, f.Path)
	}

	p.seed()
	p.applySidecar(ctx)
	p.applyExported()

	switch media.KindOfMIME(p.mimeType) {
	case media.KindImage:
		p.analyzeImage(ctx)
		if media.KindOfMIME(p.mimeType) == media.KindVideo {
			p.analyzeVideo(ctx, p.file.Content)
		}
	case media.KindVideo:
		p.analyzeVideo(ctx, p.file.Content)
	}

	p.finishDimensions()
	p.applyOptions()
	p.geocode(ctx)

	p.rec.AddTag(catalog.Tag{Name: catalog.TagNameUnsorted, Kind: catalog.TagLabel})
	if imp.RecentTags != nil {
		for _, tag := range p.rec.Tags {
			imp.RecentTags.Add(tag)
		}
	}

	p.rec.Attachment.MIMEType = p.mimeType
	if err := ctx.Err(); err != nil {
		return nil, p.warnings, err
	}
	return p.rec, p.warnings, nil
}

// fileProcessor carries the state of one file through the stages of
// ProcessFile. The stages run strictly in order.
type fileProcessor struct {
	imp  *Importer
	file File
	name string
	log  *zap.Logger

	mimeType string
	rec      *catalog.Record
	warnings catalog.Warnings

	dims     *catalog.Dimensions
	duration *catalog.Duration
}

func (p *fileProcessor) warn(kind catalog.WarningKind, format string, args ...any) {
	p.warnings.Add(kind, p.file.Path, format, args...)
	p.log.Debug("import warning", zap.Stringer("kind", kind), zap.String("details", fmt.Sprintf(format, args...)))
}

func (p *fileProcessor) setActivity(t time.Time) {
	p.rec.Activity = &t
}

// seed starts the record from what the file system knows.
func (p *fileProcessor) seed() {
	p.rec = &catalog.Record{
		ID:    uuid.New(),
		Title: p.name,
		Attachment: catalog.Attachment{
			Filename: p.name,
			Created:  p.file.ModTime,
			Modified: p.file.ModTime,
			Size:     int64(len(p.file.Content)),
			Hash:     catalog.ContentHash(p.file.Content),
			Content:  p.file.Content,
		},
	}
	if !p.file.ModTime.IsZero() {
		p.setActivity(p.file.ModTime)
	}
	if p.file.Album != "" {
		p.rec.AddTag(catalog.Tag{Name: p.file.Album, Kind: catalog.TagList})
	}
}

func (p *fileProcessor) applySidecar(ctx context.Context) {
	sc := p.file.Sidecar
	if sc == nil {
		return
	}

	if sc.Title != "" {
		p.rec.Title = sc.Title
	}
	p.rec.Notes = sc.Description

	created, modified, taken := sc.CreatedTime(), sc.ModifiedTime(), sc.TakenTime()
	loc := sc.Location()
	if loc != nil {
		p.rec.Location = loc
		p.reinterpret(ctx, *loc, taken, created, modified)
	}

	if created != nil {
		p.rec.Created = created
		p.rec.Attachment.Created = *created
	}
	if modified != nil {
		p.rec.Attachment.Modified = *modified
	}
	if taken != nil {
		p.setActivity(*taken)
	}

	for _, person := range sc.People {
		p.rec.AddTag(catalog.Tag{Name: person.Name, Kind: catalog.TagPerson})
	}
}

// applyExported restores what an earlier catalog knew about the file.
// Its timestamps were resolved when they were first imported, so they are
// taken as they are.
func (p *fileProcessor) applyExported() {
	m := p.file.Exported
	if m == nil {
		return
	}
	if m.Title != "" {
		p.rec.Title = m.Title
	}
	if m.Notes != "" {
		p.rec.Notes = m.Notes
	}
	if m.Location != nil {
		loc := *m.Location
		p.rec.Location = &loc
	}

	if m.CreatedTime != nil {
		created := *m.CreatedTime
		p.rec.Created = &created
	}
	if m.Attachment.Created != nil {
		p.rec.Attachment.Created = *m.Attachment.Created
	}
	if m.Attachment.Modified != nil {
		p.rec.Attachment.Modified = *m.Attachment.Modified
	}
	if m.ActivityTime != nil {
		p.setActivity(*m.ActivityTime)
	}

	for _, tag := range m.RecordTags() {
		if tag.Name == catalog.TagNameUnsorted {
			continue
		}
		p.rec.AddTag(tag)
	}
}

// reinterpret moves the UTC sidecar timestamps into the zone at loc. The
// lookup is done once, for the first available timestamp.
func (p *fileProcessor) reinterpret(ctx context.Context, loc catalog.Location, times ...*time.Time) {
	if p.imp.Lookup == nil {
		return
	}
	var approx *time.Time
	for _, t := range times {
		if t != nil {
			approx = t
			break
		}
	}
	if approx == nil {
		return
	}
	zone, err := p.imp.Lookup.Lookup(ctx, loc, *approx)
	if err != nil {
		p.log.Warn("looking up timezone of sidecar location",
			zap.Stringer("location", loc),
			zap.Error(err))
		return
	}
	for _, t := range times {
		if t != nil {
			*t = t.In(zone.Location())
		}
	}
}

func (p *fileProcessor) videoOptions() media.VideoOptions {
	return media.VideoOptions{
		Prober:          p.imp.Prober,
		Extractor:       p.imp.Extractor,
		AssumedTimezone: p.imp.Options.AssumedTimezone,
		Lookup:          p.imp.Lookup,
		Thumbnail:       p.imp.Thumbnails,
		TempDir:         p.imp.TempDir,
		Logger:          p.log,
	}
}

func (p *fileProcessor) analyzeImage(ctx context.Context) {
	content := p.file.Content

	split := media.DetectSplit(p.name, content)
	if split.Kind == media.SplitVideoOnly {
		p.log.Debug("image file holds only a video")
		p.mimeType = media.VideoMIMEType
		return
	}
	imageData, videoData := split.Slice(content)
	if imageData == nil {
		imageData = content
	}

	resolver := &timezone.Resolver{
		Lookup:  p.imp.Lookup,
		Assumed: p.imp.Options.AssumedTimezone,
		Logger:  p.log,
	}
	meta, err := media.ExtractImageMetadata(ctx, imageData, p.name, resolver)
	var decodeErr *media.DecodeError
	switch {
	case errors.As(err, &decodeErr):
		p.warn(catalog.WarningExifDecode, "%v", decodeErr)
	case err != nil:
		p.warn(catalog.WarningExifAnalyze, "%v", err)
	}
	if meta != nil {
		if meta.ActivityTime != nil {
			p.setActivity(*meta.ActivityTime)
		}
		if meta.Location != nil {
			p.rec.Location = meta.Location
		}
		if meta.Orientation != nil {
			p.rec.Attachment.Orientation = meta.Orientation
		}
		for _, w := range meta.Warnings {
			p.warn(catalog.WarningExifAnalyze, "%s", w)
		}
	}

	if dims, ok := media.DecodeDimensions(imageData); ok {
		p.dims = &dims
	}

	if split.Kind == media.SplitBoth {
		vmeta, err := media.AnalyzeVideo(ctx, videoData, p.name+".mp4", p.videoOptions())
		switch {
		case err != nil:
			p.warn(catalog.WarningVideoAnalysis, "analyzing embedded video: %v", err)
		case vmeta == nil:
			p.warn(catalog.WarningVideoAnalysis, "embedded video at offset %d could not be analyzed", split.VideoOffset)
		default:
			p.duration = vmeta.Duration
		}
	}
}

func (p *fileProcessor) analyzeVideo(ctx context.Context, data []byte) {
	name := p.name
	if media.KindOfMIME(media.MIMEType(name)) != media.KindVideo {
		name += ".mp4"
	}

	meta, err := media.AnalyzeVideo(ctx, data, name, p.videoOptions())
	if err != nil {
		p.warn(catalog.WarningVideoAnalysis, "%v", err)
		return
	}
	if meta == nil {
		p.warn(catalog.WarningVideoAnalysis, "no metadata could be read from the video")
		return
	}

	if meta.CreationTime != nil {
		p.setActivity(*meta.CreationTime)
	}
	if p.rec.Location == nil && meta.Location != nil {
		p.rec.Location = meta.Location
	}
	if p.rec.Attachment.Orientation == nil && meta.Orientation != nil {
		p.rec.Attachment.Orientation = meta.Orientation
	}
	if p.dims == nil && meta.Dimensions != nil {
		p.dims = meta.Dimensions
	}
	if p.duration == nil && meta.Duration != nil {
		p.duration = meta.Duration
	}
	if meta.Thumbhash != nil {
		p.rec.Attachment.Thumbhash = meta.Thumbhash
	}
	for _, w := range meta.Warnings {
		p.warn(catalog.WarningVideoAnalysis, "%s", w)
	}
}

func (p *fileProcessor) finishDimensions() {
	if p.dims != nil {
		adjusted := p.dims.AdjustForOrientation(p.rec.Attachment.Orientation)
		p.rec.Attachment.Dimensions = &adjusted
	} else {
		p.warn(catalog.WarningMissingDimensions, "pixel dimensions could not be determined")
	}

	p.rec.Attachment.Duration = p.duration
	if p.duration == nil && media.KindOfMIME(p.mimeType) == media.KindVideo {
		p.warn(catalog.WarningMissingDuration, "duration could not be determined")
	}
}

func (p *fileProcessor) applyOptions() {
	opts := p.imp.Options
	timezone.ApplyOverrides(opts,
		p.rec.Activity,
		p.rec.Created,
		&p.rec.Attachment.Created,
		&p.rec.Attachment.Modified)

	if p.rec.Notes == "" {
		p.rec.Notes = opts.AssumedNotes
	}
	if p.rec.Location == nil && opts.AssumedLocation != nil {
		loc := *opts.AssumedLocation
		p.rec.Location = &loc
	}
}

func (p *fileProcessor) geocode(ctx context.Context) {
	if p.imp.Geocoder == nil || p.rec.Location == nil {
		return
	}
	geo, err := p.imp.Geocoder.ReverseGeocode(ctx, *p.rec.Location)
	if err == nil && geo == nil {
		err = googlemaps.ErrNoResults
	}
	if err != nil {
		p.warn(catalog.WarningReverseGeocodeFailed, "%s: %v", p.rec.Location, err)
		return
	}
	for _, name := range geo.Names {
		p.rec.AddTag(catalog.Tag{Name: name, Kind: catalog.TagLocation})
	}
}

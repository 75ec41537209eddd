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

package importer

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"path"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/timelinize/mediaimport/catalog"
	"github.com/timelinize/mediaimport/datasources/googlephotos"
	"github.com/timelinize/mediaimport/datasources/media"
	"github.com/timelinize/mediaimport/scan"
	"go.uber.org/zap"
)

// Source yields the files of an import. A *scan.Scanner is a Source.
type Source interface {
	All(ctx context.Context, needsContent func(name string) bool) iter.Seq2[scan.Entry, error]
}

// Summary describes a finished run.
type Summary struct {
	RunID    uuid.UUID         `json:"run_id"`
	Files    int               `json:"files"` // media files discovered
	Imported int               `json:"imported"`
	Skipped  int               `json:"skipped"`
	Warnings []catalog.Warning `json:"warnings,omitempty"`
	Duration time.Duration     `json:"duration"`
}

// Progress stages of a run.
const (
	stageMetadata = "Collecting metadata"
	stageImport   = "Importing media"
)

// Run imports every media file of src into the store. The source is read
// twice: once for the metadata files (takeout sidecars, album metadata and
// files of an earlier catalog export) and the list of media files,
// then again to import the media. Warnings of all files are returned
// sorted, even when the run fails part way.
func (imp *Importer) Run(ctx context.Context, src Source) (summary Summary, err error) {
	summary.RunID = uuid.New()
	if imp.Store == nil {
		return summary, errors.New("no store configured")
	}

	start := time.Now()
	logger := imp.logger().With(zap.String("run_id", summary.RunID.String()))
	var warnings catalog.Warnings

	defer func() {
		catalog.SortWarnings(warnings)
		summary.Warnings = warnings
		summary.Duration = time.Since(start)
	}()

	imp.Progress.StartStage(stageMetadata, stageImport)
	meta, err := collectMetadata(ctx, src, imp.Progress, logger)
	if err != nil {
		return summary, err
	}
	summary.Files = len(meta.mediaSizes)
	logger.Info("collected metadata",
		zap.Int("media_files", summary.Files),
		zap.Int("sidecars", len(meta.sidecars)),
		zap.Int("exported", len(meta.exported)),
		zap.Int("albums", len(meta.albums)))

	ambiguous := make(map[string]struct{})
	if imp.Remote != nil {
		for _, name := range imp.Remote.Ambiguous() {
			ambiguous[name] = struct{}{}
		}
	}

	imp.Progress.StartStage(stageImport)
	isMedia := func(name string) bool {
		_, ok := media.KindByExtension(name)
		return ok
	}
	for entry, err := range src.All(ctx, isMedia) {
		if err != nil {
			return summary, err
		}
		if !isMedia(entry.Name) {
			continue
		}

		imp.Progress.Set(entry.Percent, entry.DisplayPath, entry.ProgressLabel)

		sidecar := meta.sidecars[entry.ArchivePath]
		exported := meta.exported[entry.ArchivePath]
		if sidecar == nil && exported == nil && meta.expectMetadata() {
			if orig, dup := meta.duplicateOf(entry); dup {
				warnings.Add(catalog.WarningContainerSplitDuplicate, entry.ArchivePath,
					"video part of %s, which is larger and has metadata", orig)
				summary.Skipped++
				continue
			}
			warnings.Add(catalog.WarningNoExternalMetadata, entry.ArchivePath,
				"no metadata file describes this file")
		}

		rec, fileWarnings, err := imp.ProcessFile(ctx, File{
			Path:     entry.ArchivePath,
			Content:  entry.Content,
			ModTime:  entry.ModTime,
			Sidecar:  sidecar,
			Exported: exported,
			Album:    meta.albums[path.Dir(entry.ArchivePath)],
		})
		warnings = append(warnings, fileWarnings...)
		if err != nil {
			return summary, fmt.Errorf("processing %s: %w", entry.DisplayPath, err)
		}

		if imp.Remote != nil {
			imp.linkRemote(rec, entry.ArchivePath, ambiguous, &warnings)
		}

		if err := imp.Store.AddRecord(ctx, rec); err != nil {
			return summary, fmt.Errorf("storing %s: %w", entry.DisplayPath, err)
		}
		summary.Imported++
	}

	imp.Progress.Finish()
	logger.Info("import finished",
		zap.Int("imported", summary.Imported),
		zap.Int("skipped", summary.Skipped),
		zap.Int("warnings", len(warnings)),
		zap.Duration("duration", time.Since(start)))

	return summary, nil
}

// linkRemote sets the external reference of rec to its best match in the
// remote library.
func (imp *Importer) linkRemote(rec *catalog.Record, filename string, ambiguous map[string]struct{}, warnings *catalog.Warnings) {
	name := rec.Title
	if _, ok := ambiguous[name]; ok {
		warnings.Add(catalog.WarningDuplicateRemoteFilename, filename,
			"%d remote items are named %s; picked the one closest in time",
			len(imp.Remote.Candidates(name)), name)
	}
	match, ok := imp.Remote.BestMatch(name, rec.Activity)
	if !ok {
		warnings.Add(catalog.WarningMissingRemoteReference, filename,
			"no item named %s in the remote library", name)
		return
	}
	ref := match.Reference()
	rec.ExternalRef = &ref
}

// runMetadata is what the first pass learns about the source.
type runMetadata struct {
	// Sidecars by the path of the media file they describe.
	sidecars map[string]*googlephotos.Sidecar

	// Metadata of an earlier catalog export, by media file path.
	exported map[string]*catalog.ExportedMetadata

	// Album names by folder.
	albums map[string]string

	// Sizes of the media files by path.
	mediaSizes map[string]int64
}

// expectMetadata reports whether media files of the source are
// expected to come with a metadata file.
func (m runMetadata) expectMetadata() bool {
	return len(m.sidecars) > 0 || len(m.exported) > 0
}

func (m runMetadata) hasMetadata(mediaPath string) bool {
	return m.sidecars[mediaPath] != nil || m.exported[mediaPath] != nil
}

// duplicateOf reports whether entry is the redundant video half of a
// motion photo that Takeout exported twice, and if so, the path of the
// copy that is kept.
func (m runMetadata) duplicateOf(entry scan.Entry) (string, bool) {
	orig, ok := googlephotos.UnsuffixedName(entry.ArchivePath)
	if !ok {
		return "", false
	}
	origSize, exists := m.mediaSizes[orig]
	if !exists || !m.hasMetadata(orig) || origSize <= entry.Size {
		return "", false
	}
	if media.DetectSplit(entry.Name, entry.Content).Kind != media.SplitVideoOnly {
		return "", false
	}
	return orig, true
}

func collectMetadata(ctx context.Context, src Source, progress *catalog.Progress, logger *zap.Logger) (runMetadata, error) {
	meta := runMetadata{
		sidecars:   make(map[string]*googlephotos.Sidecar),
		exported:   make(map[string]*catalog.ExportedMetadata),
		albums:     make(map[string]string),
		mediaSizes: make(map[string]int64),
	}

	isMetadata := func(name string) bool {
		return name == googlephotos.AlbumMetadataFilename || googlephotos.IsSidecarName(name)
	}

	sidecarPaths := make(map[string][]string) // by folder
	sidecarData := make(map[string][]byte)

	for entry, err := range src.All(ctx, isMetadata) {
		if err != nil {
			return meta, err
		}
		progress.Set(entry.Percent, entry.DisplayPath, entry.ProgressLabel)

		dir := path.Dir(entry.ArchivePath)
		switch {
		case entry.Name == googlephotos.AlbumMetadataFilename:
			album, err := googlephotos.ParseAlbumMetadata(entry.Content)
			if err != nil {
				logger.Warn("reading album metadata",
					zap.String("filename", entry.DisplayPath),
					zap.Error(err))
				continue
			}
			if name := album.Name(); name != "" {
				meta.albums[dir] = name
			}
		case googlephotos.IsSidecarName(entry.Name):
			exported, err := catalog.ParseExportedMetadata(entry.Content)
			if err == nil {
				meta.exported[path.Join(dir, exported.Attachment.Filename)] = exported
				continue
			}
			sidecarPaths[dir] = append(sidecarPaths[dir], entry.ArchivePath)
			sidecarData[entry.ArchivePath] = entry.Content
		default:
			if _, ok := media.KindByExtension(entry.Name); ok {
				meta.mediaSizes[entry.ArchivePath] = entry.Size
			}
		}
	}

	dirs := make([]string, 0, len(sidecarPaths))
	for dir := range sidecarPaths {
		dirs = append(dirs, dir)
	}
	sort.Strings(dirs)

	var namer googlephotos.SidecarNamer
	for _, dir := range dirs {
		paths := sidecarPaths[dir]
		googlephotos.SortTakeoutNames(paths)
		for _, jsonPath := range paths {
			sc, err := googlephotos.ParseSidecar(sidecarData[jsonPath])
			if err != nil {
				if !errors.Is(err, googlephotos.ErrNotSidecar) {
					logger.Warn("reading takeout metadata",
						zap.String("filename", jsonPath),
						zap.Error(err))
				}
				continue
			}

			mediaPath := namer.MediaPath(jsonPath, sc)
			if _, ok := meta.mediaSizes[mediaPath]; !ok {
				// the sidecar is usually named like its media file
				direct := strings.TrimSuffix(jsonPath, ".json")
				if _, ok := meta.mediaSizes[direct]; ok {
					mediaPath = direct
				}
			}
			if _, taken := meta.sidecars[mediaPath]; taken {
				logger.Debug("media file described by more than one sidecar",
					zap.String("media", mediaPath),
					zap.String("sidecar", jsonPath))
				continue
			}
			meta.sidecars[mediaPath] = sc
		}
	}

	return meta, nil
}

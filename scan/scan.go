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

// Package scan walks a folder of media files and gzip-compressed tar
// archives, yielding every contained file as a lazily produced, back-pressured
// sequence of entries.
package scan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"iter"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/timelinize/mediaimport/catalog"
	"go.uber.org/zap"
)

// Entry is one file discovered during a scan, either a loose file or a
// member of an archive. It belongs to the consumer once yielded.
type Entry struct {
	// Human-readable location, e.g. "takeout-001.tgz => Takeout/Google Photos/IMG_1.jpg".
	DisplayPath string

	// Slash-separated path inside the archive (or relative to the scan root
	// for loose files). Unique within one scan.
	ArchivePath string

	// Base name and lower-cased extension (without the dot).
	Name string
	Ext  string

	Size    int64
	ModTime time.Time

	// File content; empty unless the content predicate asked for it.
	Content []byte

	// Bytes processed so far across all files, the percentage of the
	// pre-scanned total, and a display label for both.
	ProgressBytes uint64
	Percent       float64
	ProgressLabel string
}

// Errors that abort a scan.
var (
	ErrAbandoned     = errors.New("scan abandoned by consumer")
	ErrInvalidName   = errors.New("file name is not valid UTF-8")
	ErrEntryTooLarge = errors.New("declared file size is too large")
	ErrDuplicatePath = errors.New("duplicate path within scan")
)

// DefaultMaxEntrySize is the largest entry accepted when Options.MaxEntrySize is zero.
const DefaultMaxEntrySize = 4 << 30

// Options configure a Scanner.
type Options struct {
	// If true, sub-folders of the root are scanned too. By default only
	// files directly inside the root are considered.
	Recursive bool `json:"recursive,omitempty"`

	// Entries declaring a larger size abort the scan.
	MaxEntrySize int64 `json:"max_entry_size,omitempty"`

	Progress *catalog.Progress `json:"-"`
	Logger   *zap.Logger       `json:"-"`
}

type scanFile struct {
	path string // full path on disk
	rel  string // slash-separated path relative to the root
	size int64
	mod  time.Time
}

// Scanner holds the result of a pre-scan of a folder. The file list is
// never modified after New returns, so any number of iterations may share it.
type Scanner struct {
	root       string
	totalBytes uint64
	files      []scanFile
	opts       Options
	log        *zap.Logger
}

// New pre-scans root, computing the total byte count and the list of files
// that iterations will visit.
func New(root string, opts Options) (*Scanner, error) {
	if opts.MaxEntrySize <= 0 {
		opts.MaxEntrySize = DefaultMaxEntrySize
	}
	s := &Scanner{root: root, opts: opts, log: opts.Logger}
	if s.log == nil {
		s.log = catalog.Log.Named("scan")
	}

	add := func(fpath string, d fs.DirEntry) error {
		if !utf8.ValidString(fpath) {
			return fmt.Errorf("%w: %q", ErrInvalidName, fpath)
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, fpath)
		if err != nil {
			return err
		}
		opts.Progress.Set(0, fpath)
		s.totalBytes += uint64(info.Size())
		s.files = append(s.files, scanFile{
			path: fpath,
			rel:  filepath.ToSlash(rel),
			size: info.Size(),
			mod:  info.ModTime(),
		})
		return nil
	}

	if opts.Recursive {
		err := filepath.WalkDir(root, func(fpath string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.Type().IsRegular() {
				return nil
			}
			return add(fpath, d)
		})
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
	} else {
		entries, err := os.ReadDir(root)
		if err != nil {
			return nil, fmt.Errorf("scanning %s: %w", root, err)
		}
		for _, d := range entries {
			if d.IsDir() {
				s.log.Debug("not descending into sub-folder", zap.String("folder", d.Name()))
				continue
			}
			if !d.Type().IsRegular() {
				continue
			}
			if err := add(filepath.Join(root, d.Name()), d); err != nil {
				return nil, fmt.Errorf("scanning %s: %w", root, err)
			}
		}
	}

	s.log.Info("pre-scan complete",
		zap.String("root", root),
		zap.Int("files", len(s.files)),
		zap.Uint64("total_bytes", s.totalBytes))

	return s, nil
}

// TotalBytes is the combined size of all pre-scanned files.
func (s *Scanner) TotalBytes() uint64 { return s.totalBytes }

// Files returns the paths of the pre-scanned files, relative to the root.
func (s *Scanner) Files() []string {
	names := make([]string, len(s.files))
	for i, f := range s.files {
		names[i] = f.rel
	}
	return names
}

// IsArchive reports whether name has an archive suffix the scanner descends into.
func IsArchive(name string) bool {
	lower := strings.ToLower(name)
	return strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz")
}

// Iter starts a worker that produces entries for every pre-scanned file.
// needsContent is called with each entry's base name and decides whether
// its content is read into memory; it may be nil to load nothing. The
// returned Iterator must be closed.
func (s *Scanner) Iter(ctx context.Context, needsContent func(name string) bool) *Iterator {
	if needsContent == nil {
		needsContent = func(string) bool { return false }
	}
	it := &Iterator{
		items: make(chan result), // unbuffered: the worker never runs ahead of the consumer
		stop:  make(chan struct{}),
		done:  make(chan struct{}),
	}
	w := &worker{
		s:            s,
		it:           it,
		ctx:          ctx,
		needsContent: needsContent,
		seen:         make(map[string]struct{}),
	}
	go w.run()
	return it
}

// All is a convenience wrapper around Iter for range-over-func loops.
// Breaking out of the loop closes the iterator, which waits for the worker
// to exit. A scan error is yielded once, as the last pair.
func (s *Scanner) All(ctx context.Context, needsContent func(name string) bool) iter.Seq2[Entry, error] {
	return func(yield func(Entry, error) bool) {
		it := s.Iter(ctx, needsContent)
		defer it.Close()
		for {
			entry, err := it.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(entry, err) || err != nil {
				return
			}
		}
	}
}

type result struct {
	entry Entry
	err   error
}

// Iterator hands entries from the worker to the consumer through a
// rendezvous channel.
type Iterator struct {
	items     chan result
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Next blocks until the worker has produced the next entry. It returns
// io.EOF after the last entry. If the scan failed, the error is returned
// once and io.EOF thereafter.
func (it *Iterator) Next() (Entry, error) {
	r, ok := <-it.items
	if !ok {
		return Entry{}, io.EOF
	}
	return r.entry, r.err
}

// Close abandons the iteration and blocks until the worker has exited.
// It is safe to call more than once and after the sequence is exhausted.
func (it *Iterator) Close() {
	it.closeOnce.Do(func() { close(it.stop) })
	<-it.done
}

type worker struct {
	s            *Scanner
	it           *Iterator
	ctx          context.Context
	needsContent func(string) bool
	seen         map[string]struct{}

	finishedBytes uint64 // bytes of files fully processed
}

func (w *worker) run() {
	defer close(w.it.done)
	defer close(w.it.items)

	err := w.scanAll()
	if err == nil || errors.Is(err, ErrAbandoned) {
		return
	}

	w.s.log.Error("scan aborted", zap.Error(err))

	// the error is the final item; the consumer may have gone away already
	select {
	case w.it.items <- result{err: err}:
	case <-w.it.stop:
	}
}

func (w *worker) scanAll() error {
	for _, f := range w.s.files {
		var err error
		if IsArchive(f.path) {
			err = w.scanArchive(f)
		} else {
			err = w.scanLooseFile(f)
		}
		if err != nil {
			return err
		}
		w.finishedBytes += uint64(f.size)
	}
	return nil
}

func (w *worker) scanLooseFile(f scanFile) error {
	if err := w.checkEntry(f.rel, f.size); err != nil {
		return err
	}
	name := path.Base(f.rel)
	var content []byte
	if w.needsContent(name) {
		var err error
		content, err = os.ReadFile(f.path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", f.path, err)
		}
	}
	return w.send(Entry{
		DisplayPath: f.path,
		ArchivePath: f.rel,
		Name:        name,
		Ext:         extension(name),
		Size:        f.size,
		ModTime:     f.mod,
		Content:     content,
	}, uint64(f.size))
}

// checkEntry enforces the per-entry invariants shared by loose files and
// archive members.
func (w *worker) checkEntry(archivePath string, size int64) error {
	if !utf8.ValidString(archivePath) {
		return fmt.Errorf("%w: %q", ErrInvalidName, archivePath)
	}
	if size < 0 || size > w.s.opts.MaxEntrySize {
		return fmt.Errorf("%w: %s declares %d bytes (limit %d)", ErrEntryTooLarge, archivePath, size, w.s.opts.MaxEntrySize)
	}
	if _, dup := w.seen[archivePath]; dup {
		return fmt.Errorf("%w: %s", ErrDuplicatePath, archivePath)
	}
	w.seen[archivePath] = struct{}{}
	return nil
}

// send blocks until the consumer takes the entry or abandons the scan.
// currentBytes is the progress made within the file being processed.
func (w *worker) send(e Entry, currentBytes uint64) error {
	processed := w.finishedBytes + currentBytes
	e.ProgressBytes = processed
	e.Percent = 100
	if w.s.totalBytes > 0 {
		e.Percent = float64(processed) / float64(w.s.totalBytes) * 100
	}
	e.ProgressLabel = fmt.Sprintf("Processed %s of %s",
		catalog.FormatBytes(processed), catalog.FormatBytes(w.s.totalBytes))
	w.s.opts.Progress.Set(e.Percent, e.DisplayPath, e.ProgressLabel)

	select {
	case w.it.items <- result{entry: e}:
		return nil
	case <-w.it.stop:
		return ErrAbandoned
	case <-w.ctx.Done():
		return w.ctx.Err()
	}
}

func extension(name string) string {
	lower := strings.ToLower(name)
	if strings.HasSuffix(lower, ".tar.gz") {
		return "tar.gz"
	}
	return strings.TrimPrefix(path.Ext(lower), ".")
}

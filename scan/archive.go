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

package scan

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"

	"github.com/mholt/archives"
	"go.uber.org/zap"
)

// gzipTar decodes .tar.gz and .tgz files.
var gzipTar = archives.CompressedArchive{
	Compression: archives.Gz{},
	Extraction:  archives.Tar{},
}

func (w *worker) scanArchive(f scanFile) error {
	file, err := os.Open(f.path)
	if err != nil {
		return fmt.Errorf("opening archive: %w", err)
	}
	defer file.Close()

	counter := &countingReader{r: file}

	w.s.log.Debug("extracting archive", zap.String("archive", f.path), zap.Int64("size", f.size))

	err = gzipTar.Extract(w.ctx, counter, func(ctx context.Context, info archives.FileInfo) error {
		if info.IsDir() || !info.Mode().IsRegular() {
			return nil
		}

		archivePath := strings.TrimPrefix(info.NameInArchive, "./")
		if err := w.checkEntry(archivePath, info.Size()); err != nil {
			return err
		}

		name := path.Base(archivePath)
		var content []byte
		if w.needsContent(name) {
			var err error
			content, err = readAll(info, info.Size())
			if err != nil {
				return fmt.Errorf("reading %s: %w", archivePath, err)
			}
		}

		return w.send(Entry{
			DisplayPath: f.path + " => " + archivePath,
			ArchivePath: archivePath,
			Name:        name,
			Ext:         extension(name),
			Size:        info.Size(),
			ModTime:     info.ModTime(),
			Content:     content,
		}, counter.n)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", f.path, err)
	}
	return nil
}

func readAll(info archives.FileInfo, size int64) ([]byte, error) {
	rc, err := info.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	buf.Grow(int(size))
	// the header's declared size bounds the read
	n, err := buf.ReadFrom(io.LimitReader(rc, size+1))
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("expected %d bytes but read %d", size, n)
	}
	return buf.Bytes(), nil
}

// countingReader counts the compressed bytes consumed from an archive.
// It is only used by the worker goroutine.
type countingReader struct {
	r io.Reader
	n uint64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += uint64(n)
	return n, err
}

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

package googlephotos

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/maruel/natural"
	"github.com/timelinize/mediaimport/catalog"
	"go.uber.org/zap"
)

// Index holds the entries of a remote library by file name, so imported
// files can be linked to the remote items they were uploaded as.
type Index struct {
	byFilename map[string][]RemoteEntry
	count      int
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{byFilename: make(map[string][]RemoteEntry)}
}

// Add appends e to the candidates for its file name.
func (idx *Index) Add(e RemoteEntry) {
	idx.byFilename[e.Filename] = append(idx.byFilename[e.Filename], e)
	idx.count++
}

// Len returns the number of entries in the index.
func (idx *Index) Len() int { return idx.count }

// Candidates returns the entries with the given file name, in the order
// they were added.
func (idx *Index) Candidates(filename string) []RemoteEntry {
	return idx.byFilename[filename]
}

// BestMatch returns the entry named filename whose creation time is closest
// to t. Ties go to the entry added first. Without t, the first entry wins.
// Entries without a creation time never beat one that has it.
func (idx *Index) BestMatch(filename string, t *time.Time) (RemoteEntry, bool) {
	candidates := idx.byFilename[filename]
	if len(candidates) == 0 {
		return RemoteEntry{}, false
	}
	if t == nil {
		return candidates[0], true
	}

	best, bestDiff := -1, int64(0)
	for i, c := range candidates {
		if c.CreationTime == nil {
			continue
		}
		diff := t.Sub(*c.CreationTime).Milliseconds()
		if diff < 0 {
			diff = -diff
		}
		if best < 0 || diff < bestDiff {
			best, bestDiff = i, diff
		}
	}
	if best < 0 {
		return candidates[0], true
	}
	return candidates[best], true
}

// Ambiguous returns the file names shared by more than one entry, in
// natural order.
func (idx *Index) Ambiguous() []string {
	var names []string
	for name, candidates := range idx.byFilename {
		if len(candidates) > 1 {
			names = append(names, name)
		}
	}
	sort.Slice(names, func(i, j int) bool { return natural.Less(names[i], names[j]) })
	return names
}

// LoadIndex fetches all pages from fetch into a new index, until a page
// has no next page token. progress may be nil.
func LoadIndex(ctx context.Context, fetch PageFunc, progress *catalog.Progress, logger *zap.Logger) (*Index, error) {
	if logger == nil {
		logger = catalog.Log.Named("googlephotos")
	}

	idx := NewIndex()
	var token string
	for pages := 1; ; pages++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page, err := fetch(ctx, token)
		if err != nil {
			return nil, fmt.Errorf("loading page %d of remote library: %w", pages, err)
		}
		for _, e := range page.Entries {
			idx.Add(e)
		}

		progress.Set(0, fmt.Sprintf("Loaded %d media items", idx.Len()))
		logger.Debug("loaded page of remote library",
			zap.Int("page", pages),
			zap.Int("entries", len(page.Entries)),
			zap.Int("total", idx.Len()))

		if page.NextPageToken == "" {
			break
		}
		token = page.NextPageToken
	}

	return idx, nil
}

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
	"sort"
	"sync"

	"github.com/maruel/natural"
)

// DefaultRecentTagsSize is how many tags a RecentTags remembers by default.
const DefaultRecentTagsSize = 10

// RecentTags remembers the most recently used tags so they can be offered
// again. System tags are never remembered. It is safe for concurrent use.
type RecentTags struct {
	mu    sync.Mutex
	size  int
	order []string // normalized names, most recent last
	tags  map[string]Tag
}

// NewRecentTags returns a cache holding at most size tags.
func NewRecentTags(size int) *RecentTags {
	if size <= 0 {
		size = DefaultRecentTagsSize
	}
	return &RecentTags{size: size, tags: make(map[string]Tag)}
}

// Add marks tag as the most recently used one, evicting the least
// recently used tag if the cache is full.
func (rt *RecentTags) Add(tag Tag) {
	norm := NormalizeTagName(tag.Name)
	if norm == "" ||
		norm == NormalizeTagName(TagNameUnsorted) ||
		norm == NormalizeTagName(TagNameTrash) {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.remove(norm)
	if len(rt.order) >= rt.size {
		rt.remove(rt.order[0])
	}
	rt.order = append(rt.order, norm)
	rt.tags[norm] = tag
}

// Recent returns the remembered tags sorted by name in natural order.
func (rt *RecentTags) Recent() []Tag {
	rt.mu.Lock()
	result := make([]Tag, 0, len(rt.tags))
	for _, t := range rt.tags {
		result = append(result, t)
	}
	rt.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return natural.Less(NormalizeTagName(result[i].Name), NormalizeTagName(result[j].Name))
	})
	return result
}

func (rt *RecentTags) remove(norm string) {
	for i, n := range rt.order {
		if n == norm {
			rt.order = append(rt.order[:i], rt.order[i+1:]...)
			break
		}
	}
	delete(rt.tags, norm)
}

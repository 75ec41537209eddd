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

import "testing"

func TestRecentTagsEvictsLeastRecent(t *testing.T) {
	rt := NewRecentTags(3)
	rt.Add(Tag{Name: "a"})
	rt.Add(Tag{Name: "b"})
	rt.Add(Tag{Name: "c"})
	rt.Add(Tag{Name: "A"}) // refresh "a"
	rt.Add(Tag{Name: "d"}) // evicts "b"

	recent := rt.Recent()
	var names []string
	for _, tag := range recent {
		names = append(names, NormalizeTagName(tag.Name))
	}
	expect := []string{"a", "c", "d"}
	if len(names) != len(expect) {
		t.Fatalf("Expected %v but got %v", expect, names)
	}
	for i := range expect {
		if names[i] != expect[i] {
			t.Errorf("Position %d: Expected '%s' but got '%s'", i, expect[i], names[i])
		}
	}
}

func TestRecentTagsSkipsSystemTags(t *testing.T) {
	rt := NewRecentTags(0)
	rt.Add(Tag{Name: "Unsorted"})
	rt.Add(Tag{Name: " trash "})
	rt.Add(Tag{Name: ""})
	rt.Add(Tag{Name: "Holiday", Kind: TagEvent})

	recent := rt.Recent()
	if len(recent) != 1 || recent[0].Name != "Holiday" {
		t.Errorf("Expected only 'Holiday' but got %+v", recent)
	}
}

func TestRecentTagsNaturalOrder(t *testing.T) {
	rt := NewRecentTags(DefaultRecentTagsSize)
	for _, name := range []string{"Trip 10", "Trip 2", "Trip 1"} {
		rt.Add(Tag{Name: name})
	}
	recent := rt.Recent()
	expect := []string{"Trip 1", "Trip 2", "Trip 10"}
	for i := range expect {
		if recent[i].Name != expect[i] {
			t.Errorf("Position %d: Expected '%s' but got '%s'", i, expect[i], recent[i].Name)
		}
	}
}

func TestProgressStages(t *testing.T) {
	p := NewProgress(nil)
	p.StartStage("Scanning", "Loading Metadata", "Importing Media")
	p.Set(50, "half way")
	p.StartStage("Loading Metadata", "Importing Media")

	st := p.State()
	if st.CurrentStage != "Loading Metadata" || st.Percent != 0 || len(st.Lines) != 0 {
		t.Errorf("Unexpected state after second stage: %+v", st)
	}
	if len(st.CompletedStages) != 1 || st.CompletedStages[0] != "Scanning" {
		t.Errorf("Expected completed stage 'Scanning' but got %v", st.CompletedStages)
	}

	p.Finish()
	st = p.State()
	if !st.Complete || len(st.CompletedStages) != 2 {
		t.Errorf("Unexpected final state: %+v", st)
	}

	var nilProgress *Progress
	nilProgress.StartStage("ignored")
	nilProgress.Set(10)
}

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
	"slices"
	"sync"

	"go.uber.org/zap"
)

// ProgressState is a snapshot of a long-running operation's progress.
type ProgressState struct {
	CompletedStages []string `json:"completed_stages"`
	CurrentStage    string   `json:"current_stage"`
	Percent         float64  `json:"percent"`
	Lines           []string `json:"lines"`
	RemainingStages []string `json:"remaining_stages"`
	Complete        bool     `json:"complete"`
}

// Progress is written by one operation and read by any number of
// observers. It is safe for concurrent use. A nil *Progress discards
// all updates.
type Progress struct {
	mu      sync.Mutex
	started bool
	state   ProgressState
	log     *zap.Logger
}

// NewProgress returns a progress tracker that also logs stage changes
// to logger, if not nil.
func NewProgress(logger *zap.Logger) *Progress {
	return &Progress{
		state: ProgressState{CurrentStage: "Starting..."},
		log:   logger,
	}
}

// StartStage completes the current stage (if any) and begins a new one.
func (p *Progress) StartStage(name string, remaining ...string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.state.CompletedStages = append(p.state.CompletedStages, p.state.CurrentStage)
	}
	p.started = true
	p.state.CurrentStage = name
	p.state.Percent = 0
	p.state.Lines = nil
	p.state.RemainingStages = remaining
	if p.log != nil {
		p.log.Info("stage started", zap.String("stage", name), zap.Strings("remaining", remaining))
	}
}

// Set updates the percentage and the descriptive lines of the current stage.
func (p *Progress) Set(percent float64, lines ...string) {
	if p == nil {
		return
	}
	p.mu.Lock()
	p.state.Percent = percent
	p.state.Lines = lines
	p.mu.Unlock()
}

// Finish marks the whole operation complete.
func (p *Progress) Finish() {
	if p == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		p.state.CompletedStages = append(p.state.CompletedStages, p.state.CurrentStage)
	}
	p.state.CurrentStage = ""
	p.state.Percent = 100
	p.state.Lines = nil
	p.state.RemainingStages = nil
	p.state.Complete = true
}

// State returns a copy of the current state.
func (p *Progress) State() ProgressState {
	if p == nil {
		return ProgressState{}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	st := p.state
	st.CompletedStages = slices.Clone(st.CompletedStages)
	st.Lines = slices.Clone(st.Lines)
	st.RemainingStages = slices.Clone(st.RemainingStages)
	return st
}

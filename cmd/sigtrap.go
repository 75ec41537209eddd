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

package mediacmd

import (
	"context"
	"os"
	"os/signal"
	"sync"

	"github.com/timelinize/mediaimport/catalog"
)

// trapSignals returns a context that is canceled by the first interrupt
// signal, so a running import stops cleanly. A second interrupt exits
// the process immediately. The returned stop function cancels the
// context and stops listening for signals.
func trapSignals(parent context.Context) (context.Context, func()) {
	ctx, cancel := context.WithCancel(parent)

	done := make(chan struct{})
	var once sync.Once
	stop := func() {
		once.Do(func() { close(done) })
		cancel()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt)
	go func() {
		defer signal.Stop(sig)
		watchInterrupts(sig, done, cancel, func() {
			catalog.Log.Fatal("SIGINT: force quit")
		})
	}()

	trapSignalsPosix(done, cancel)

	return ctx, stop
}

// watchInterrupts cancels on the first signal and calls forceQuit on the
// second. It returns when done is closed or after forceQuit.
func watchInterrupts(sig <-chan os.Signal, done <-chan struct{}, cancel context.CancelFunc, forceQuit func()) {
	interrupted := false
	for {
		select {
		case <-sig:
		case <-done:
			return
		}

		if interrupted {
			forceQuit()
			return
		}
		interrupted = true

		catalog.Log.Warn("SIGINT: canceling import")
		cancel()
	}
}

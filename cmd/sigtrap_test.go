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
	"testing"
	"time"
)

func TestWatchInterrupts(t *testing.T) {
	sig := make(chan os.Signal)
	done := make(chan struct{})
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	quit := make(chan struct{})
	returned := make(chan struct{})

	go func() {
		watchInterrupts(sig, done, cancel, func() { close(quit) })
		close(returned)
	}()

	sig <- os.Interrupt
	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the first interrupt to cancel the context")
	}
	select {
	case <-quit:
		t.Fatal("Expected no force quit after the first interrupt")
	default:
	}

	// still listening after the cancellation
	sig <- os.Interrupt
	select {
	case <-quit:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the second interrupt to force quit")
	}
	<-returned
}

func TestWatchInterruptsStop(t *testing.T) {
	sig := make(chan os.Signal, 1)
	done := make(chan struct{})
	var canceled, quit bool
	returned := make(chan struct{})

	go func() {
		watchInterrupts(sig, done, func() { canceled = true }, func() { quit = true })
		close(returned)
	}()
	close(done)

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("Expected the watcher to return once stopped")
	}
	if canceled || quit {
		t.Errorf("Expected neither cancel nor quit without a signal, got cancel=%v quit=%v", canceled, quit)
	}
}

func TestTrapSignalsStop(t *testing.T) {
	ctx, stop := trapSignals(context.Background())
	stop()
	stop()
	if ctx.Err() == nil {
		t.Error("Expected the context to be canceled by stop")
	}
}

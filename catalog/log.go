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
	"io"
	"os"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Log is the main process log. All named logs should be derivatives of
// this logger.
var Log = newLogger()

// WarningsLoggerName is the name of the logger that reports import
// warnings; its entries are never sampled away.
const WarningsLoggerName = "import.warning"

// newLogger returns a logger that writes human-readable entries to the
// console and JSON entries to any extra outputs added with AddLogOutput.
func newLogger() *zap.Logger {
	consoleOut := zapcore.Lock(os.Stderr)
	extraOut := zapcore.AddSync(extraLogOutputs)

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = func(ts time.Time, encoder zapcore.PrimitiveArrayEncoder) {
		encoder.AppendString(ts.UTC().Format("2006/01/02 15:04:05.000"))
	}
	encCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder
	consoleEncoder := zapcore.NewConsoleEncoder(encCfg)
	jsonEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())

	core := zapcore.NewTee(
		zapcore.NewCore(consoleEncoder, consoleOut, consoleLevel),
		zapcore.NewCore(jsonEncoder, extraOut, zap.InfoLevel),
	)

	// avoid a firehose of logs on archives with many thousands of entries
	const firstNMsgs, everyNthMsg = 10, 100
	core = zapcore.NewSamplerWithOptions(core, time.Second, firstNMsgs, everyNthMsg)

	return zap.New(&customCore{core})
}

// consoleLevel can be changed at runtime, for example by a --verbose flag.
var consoleLevel = zap.NewAtomicLevelAt(zap.InfoLevel)

// SetVerbose enables or disables debug output on the console.
func SetVerbose(verbose bool) {
	if verbose {
		consoleLevel.SetLevel(zap.DebugLevel)
	} else {
		consoleLevel.SetLevel(zap.InfoLevel)
	}
}

// multiWriter is like io.MultiWriter, except writers can be added and
// removed while it is in use. Write errors are discarded.
type multiWriter struct {
	mu      sync.RWMutex
	writers []io.Writer
}

func (mw *multiWriter) Write(p []byte) (int, error) {
	mw.mu.RLock()
	defer mw.mu.RUnlock()
	for _, w := range mw.writers {
		_, _ = w.Write(p)
	}
	return len(p), nil
}

func (mw *multiWriter) add(w io.Writer) {
	mw.mu.Lock()
	mw.writers = append(mw.writers, w)
	mw.mu.Unlock()
}

func (mw *multiWriter) remove(w io.Writer) {
	mw.mu.Lock()
	for i, existing := range mw.writers {
		if existing == w {
			mw.writers = append(mw.writers[:i], mw.writers[i+1:]...)
			break
		}
	}
	mw.mu.Unlock()
}

var extraLogOutputs = new(multiWriter)

// AddLogOutput subscribes w to JSON-encoded log entries.
func AddLogOutput(w io.Writer) { extraLogOutputs.add(w) }

// RemoveLogOutput unsubscribes w. It is idempotent.
func RemoveLogOutput(w io.Writer) { extraLogOutputs.remove(w) }

// customCore wraps another zapcore.Core and prevents sampling based on logger name.
type customCore struct {
	zapcore.Core
}

func (c *customCore) Check(ent zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if ent.LoggerName == WarningsLoggerName {
		// every warning must reach the log, so no sampling
		return ce.AddCore(ent, c)
	}
	return c.Core.Check(ent, ce)
}

func (c *customCore) With(fields []zapcore.Field) zapcore.Core {
	return &customCore{c.Core.With(fields)}
}

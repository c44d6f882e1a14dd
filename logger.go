package raytrace

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/gogpu/raytrace/cache"
	"github.com/gogpu/raytrace/gpucore"
	"github.com/gogpu/raytrace/render"
)

// nopHandler is a slog.Handler that silently discards all log records.
// The Enabled method returns false so the caller skips message formatting
// entirely, making disabled logging effectively zero-cost.
type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (nopHandler) WithAttrs([]slog.Attr) slog.Handler        { return nopHandler{} }
func (nopHandler) WithGroup(string) slog.Handler             { return nopHandler{} }

// newNopLogger creates a logger that silently discards all output.
func newNopLogger() *slog.Logger { return slog.New(nopHandler{}) }

// loggerPtr stores the active logger. Accessed atomically so that
// SetLogger can be called concurrently with logging from any goroutine.
var loggerPtr atomic.Pointer[slog.Logger]

func init() {
	l := newNopLogger()
	loggerPtr.Store(l)
}

// Devices of started tracers receive logger updates.
var (
	devicesMu sync.Mutex
	devices   = make(map[gpucore.Device]int)
)

// SetLogger configures the logger for raytrace and all its sub-packages.
// By default, raytrace produces no log output. Call SetLogger to enable
// logging.
//
// SetLogger is safe for concurrent use: it stores the new logger atomically.
// Pass nil to disable logging (restore default silent behavior).
//
// Log levels used by raytrace:
//   - [slog.LevelDebug]: per-frame diagnostics (state transitions, buffer
//     allocations, dispatch sizes)
//   - [slog.LevelInfo]: lifecycle events (tracer start/stop, adapter selected)
//   - [slog.LevelWarn]: non-fatal issues
//
// Example:
//
//	raytrace.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
//	    Level: slog.LevelDebug,
//	})))
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = newNopLogger()
	}
	loggerPtr.Store(l)
	cache.SetLogger(l)
	render.SetLogger(l)

	devicesMu.Lock()
	defer devicesMu.Unlock()
	for dev := range devices {
		propagateLogger(dev, l)
	}
}

// Logger returns the current logger used by raytrace.
//
// Logger is safe for concurrent use.
func Logger() *slog.Logger {
	return loggerPtr.Load()
}

// loggerSetter is implemented by devices that accept a logger.
type loggerSetter interface {
	SetLogger(*slog.Logger)
}

// propagateLogger passes the logger to a device if it implements the
// loggerSetter interface.
func propagateLogger(dev gpucore.Device, l *slog.Logger) {
	if ls, ok := dev.(loggerSetter); ok {
		ls.SetLogger(l)
	}
}

// trackDevice hands the current logger to dev and keeps it updated until
// untrackDevice. Calls nest per device.
func trackDevice(dev gpucore.Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	devices[dev]++
	propagateLogger(dev, Logger())
}

func untrackDevice(dev gpucore.Device) {
	devicesMu.Lock()
	defer devicesMu.Unlock()
	if devices[dev] <= 1 {
		delete(devices, dev)
		return
	}
	devices[dev]--
}

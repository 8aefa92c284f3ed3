package log

import (
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"

	charmlog "github.com/charmbracelet/log"

	"avm1dump/internal/logging"
)

var (
	initOnce    sync.Once
	initialized atomic.Bool
)

// Setup installs the charm logger as the slog default. Later calls are no-ops.
func Setup(debug bool) *logging.LoggerCloser {
	var lc *logging.LoggerCloser
	initOnce.Do(func() {
		lc = logging.NewLogger()
		if debug || logging.IsDebug() {
			lc.SetLevel(charmlog.DebugLevel)
			lc.SetReportCaller(true)
		}
		slog.SetDefault(slog.New(lc.Logger))
		initialized.Store(true)
	})
	return lc
}

func Initialized() bool {
	return initialized.Load()
}

func RecoverPanic(name string, cleanup func()) {
	if r := recover(); r != nil {
		if Initialized() {
			slog.Error(fmt.Sprintf("Panic in %s", name),
				"panic", r,
				"stack", string(debug.Stack()))
		}
		if cleanup != nil {
			cleanup()
		}
	}
}

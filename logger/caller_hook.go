package logger

import (
	"runtime"
	"strings"

	"github.com/sirupsen/logrus"
)

// wrapperPackages are skipped when resolving the reported caller.
var wrapperPackages = []string{"sirupsen/logrus", "cryptobridge/logger."}

// callerHook points entry.Caller at the first frame outside logrus and the
// Log/Entry wrappers, so file:line names the real call site.
type callerHook struct{}

func (h *callerHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *callerHook) Fire(entry *logrus.Entry) error {
	pcs := make([]uintptr, 24)
	if frame, ok := firstCallerFrame(runtime.CallersFrames(pcs[:runtime.Callers(4, pcs)])); ok {
		entry.Caller = &frame
	}
	return nil
}

type frameIterator interface {
	Next() (runtime.Frame, bool)
}

// firstCallerFrame returns the first non-wrapper frame. Next reports more=false
// together with the final frame, which still has to be checked.
func firstCallerFrame(frames frameIterator) (runtime.Frame, bool) {
	for {
		frame, more := frames.Next()
		if frame.Function != "" && !isWrapperFrame(frame.Function) {
			return frame, true
		}
		if !more {
			return runtime.Frame{}, false
		}
	}
}

func isWrapperFrame(fn string) bool {
	for _, pkg := range wrapperPackages {
		if strings.Contains(fn, pkg) {
			return true
		}
	}
	return false
}

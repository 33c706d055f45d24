package logger

import (
	"runtime"
	"testing"
)

type stubFrames struct {
	frames []runtime.Frame
}

func (s *stubFrames) Next() (runtime.Frame, bool) {
	if len(s.frames) == 0 {
		return runtime.Frame{}, false
	}
	f := s.frames[0]
	s.frames = s.frames[1:]
	return f, len(s.frames) > 0
}

func TestFirstCallerFrameSkipsWrappers(t *testing.T) {
	frames := &stubFrames{frames: []runtime.Frame{
		{Function: "github.com/sirupsen/logrus.(*Entry).Log"},
		{Function: "cryptobridge/logger.(*Entry).Warn"},
		{Function: "cryptobridge/reader.(*Supervisor).observe", Line: 42},
		{Function: "cryptobridge/reader.(*Supervisor).Run"},
	}}

	got, ok := firstCallerFrame(frames)
	if !ok || got.Function != "cryptobridge/reader.(*Supervisor).observe" || got.Line != 42 {
		t.Fatalf("unexpected caller: %+v ok=%v", got, ok)
	}
}

func TestFirstCallerFrameChecksLastFrame(t *testing.T) {
	frames := &stubFrames{frames: []runtime.Frame{
		{Function: "github.com/sirupsen/logrus.(*Logger).Info"},
		{Function: "main.main", Line: 7},
	}}

	got, ok := firstCallerFrame(frames)
	if !ok || got.Function != "main.main" {
		t.Fatalf("final frame not considered: %+v ok=%v", got, ok)
	}
}

func TestFirstCallerFrameOnlyWrappers(t *testing.T) {
	frames := &stubFrames{frames: []runtime.Frame{
		{Function: "github.com/sirupsen/logrus.(*Logger).Info"},
		{Function: "cryptobridge/logger.(*Log).LogMetric"},
	}}

	if got, ok := firstCallerFrame(frames); ok {
		t.Fatalf("expected no caller, got %+v", got)
	}
	if _, ok := firstCallerFrame(&stubFrames{}); ok {
		t.Fatal("expected no caller for empty stack")
	}
}

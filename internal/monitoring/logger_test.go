package monitoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestSetLogger(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	called := false
	SetLogger(func(format string, v ...interface{}) { called = true })
	Logf("test message")
	if !called {
		t.Error("custom logger was not called")
	}

	called = false
	SetLogger(nil)
	Logf("test message")
	if called {
		t.Error("no-op logger should not reach the previous logger")
	}
}

func TestRecorderAndPrefixed(t *testing.T) {
	original := Logf
	defer func() { Logf = original }()

	var rec Recorder
	logf := Prefixed("[Teensy1] ")
	SetLogger(rec.Logf)

	logf("reply took %dms", 12)
	Logf("plain %s", "line")

	want := []string{"[Teensy1] reply took 12ms", "plain line"}
	if diff := cmp.Diff(want, rec.Lines()); diff != "" {
		t.Errorf("lines mismatch (-want +got):\n%s", diff)
	}
}

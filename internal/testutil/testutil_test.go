package testutil

import (
	"net/http"
	"strings"
	"testing"

	"github.com/banshee-data/display1593/internal/display"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/monitoring"
)

func init() {
	monitoring.SetLogger(nil)
}

func TestMaskIsShared(t *testing.T) {
	a := Mask(t, 32)
	b := Mask(t, 32)
	if a != b {
		t.Error("Mask built twice for the same size")
	}
	if err := a.Validate(); err != nil {
		t.Errorf("fixture mask invalid: %v", err)
	}
}

func TestRigShownFollowsIDs(t *testing.T) {
	r := NewRig(t, display.Options{})
	c := led.Color{R: 9, G: 8, B: 7}
	for _, id := range []led.ID{0, Split - 1, Split, led.Count - 1} {
		if err := r.Display.SetOne(id, c); err != nil {
			t.Fatalf("SetOne(%d): %v", id, err)
		}
	}
	shown := r.Shown()
	for _, id := range []led.ID{0, Split - 1, Split, led.Count - 1} {
		if shown[id] != c {
			t.Errorf("led %d shows %v, want %v", id, shown[id], c)
		}
	}
	if shown[1] != led.Black {
		t.Errorf("led 1 shows %v, want black", shown[1])
	}
}

func TestServe(t *testing.T) {
	h := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
		w.Write([]byte(r.RemoteAddr))
	})
	w := Serve(h, http.MethodPost, "/x", strings.NewReader("{}"))
	AssertStatusCode(t, w.Code, http.StatusAccepted)
	if !strings.HasPrefix(w.Body.String(), "127.0.0.1") {
		t.Errorf("remote addr = %q", Describe(w))
	}
}

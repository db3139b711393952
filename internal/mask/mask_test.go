package mask

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
)

func TestBuildPartitionsEveryPixel(t *testing.T) {
	for _, size := range []int{48, 128} {
		m, err := Build(geometry.Synthetic(800), size)
		if err != nil {
			t.Fatalf("Build(%d): %v", size, err)
		}
		if err := m.Validate(); err != nil {
			t.Fatalf("Build(%d) produced invalid mask: %v", size, err)
		}

		total := 0
		for id, px := range m.Pixels {
			if len(px) == 0 {
				t.Fatalf("led %d has no pixels", id)
			}
			total += len(px)
		}
		if total != size*size {
			t.Errorf("size %d: %d pixels assigned, want %d", size, total, size*size)
		}
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	table := geometry.Synthetic(800)
	a, err := Build(table, 64)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Build(table, 64)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("masks differ (-a +b):\n%s", diff)
	}
}

func TestBuildAssignsNearestLed(t *testing.T) {
	table := geometry.Synthetic(800)
	m, err := Build(table, 128)
	if err != nil {
		t.Fatal(err)
	}
	// The pixel under an LED centre belongs to that LED unless the LED
	// shares the pixel with a closer neighbour.
	owners := m.Owners()
	w, _ := table.Size()
	hits := 0
	for _, p := range table.All() {
		x := int(p.X / w * float64(m.Size))
		y := int(p.Y / w * float64(m.Size))
		if owners[y*m.Size+x] == p.ID {
			hits++
		}
	}
	if hits < led.Count/2 {
		t.Errorf("only %d leds own the pixel under their centre", hits)
	}
}

func TestBuildRejectsTooSmall(t *testing.T) {
	if _, err := Build(geometry.Synthetic(800), 30); err == nil {
		t.Fatal("expected error for a 30x30 mask")
	}
}

func TestValidateRejectsBrokenPartitions(t *testing.T) {
	good, err := Build(geometry.Synthetic(800), 48)
	if err != nil {
		t.Fatal(err)
	}

	clone := func() *Mask {
		c := &Mask{Size: good.Size, Pixels: make([][]int32, len(good.Pixels))}
		for i, px := range good.Pixels {
			c.Pixels[i] = append([]int32(nil), px...)
		}
		return c
	}

	empty := clone()
	empty.Pixels[0] = nil
	if err := empty.Validate(); err == nil {
		t.Error("empty led list accepted")
	}

	dup := clone()
	dup.Pixels[1] = append(dup.Pixels[1], dup.Pixels[2][0])
	if err := dup.Validate(); err == nil {
		t.Error("pixel in two lists accepted")
	}

	outside := clone()
	outside.Pixels[3] = append(outside.Pixels[3], int32(48*48))
	if err := outside.Validate(); err == nil {
		t.Error("out of range pixel accepted")
	}

	short := clone()
	short.Pixels = short.Pixels[:100]
	if err := short.Validate(); err == nil {
		t.Error("mask with too few leds accepted")
	}
}

func TestSaveLoad(t *testing.T) {
	m, err := Build(geometry.Synthetic(800), 48)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "mask.json")
	if err := m.Save(path); err != nil {
		t.Fatal(err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(m, loaded); diff != "" {
		t.Errorf("loaded mask differs:\n%s", diff)
	}
}

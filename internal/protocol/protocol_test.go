package protocol

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/banshee-data/display1593/internal/led"
)

func TestSetOneBytes(t *testing.T) {
	got, err := SetOne(0x0312, led.Color{R: 1, G: 2, B: 255})
	if err != nil {
		t.Fatalf("SetOne: %v", err)
	}
	want := []byte{'S', 0x03, 0x12, 1, 2, 255}
	if !bytes.Equal(got, want) {
		t.Errorf("SetOne = % x, want % x", got, want)
	}
}

func TestSetOneRejectsWideIndex(t *testing.T) {
	for _, local := range []int{-1, 0x10000} {
		if _, err := SetOne(local, led.Black); !errors.Is(err, led.ErrInvalidLed) {
			t.Errorf("SetOne(%d) error = %v, want ErrInvalidLed", local, err)
		}
	}
}

func TestBatchBytes(t *testing.T) {
	cmds, err := Batch([]Update{
		{Local: 1, Color: led.Color{R: 10, G: 20, B: 30}},
		{Local: 300, Color: led.Color{R: 40, G: 50, B: 60}},
	})
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	want := [][]byte{{
		'N', 0x00, 0x0a,
		0x00, 0x01, 10, 20, 30,
		0x01, 0x2c, 40, 50, 60,
	}}
	if diff := cmp.Diff(want, cmds); diff != "" {
		t.Errorf("Batch mismatch (-want +got):\n%s", diff)
	}
}

func TestBatchEmpty(t *testing.T) {
	cmds, err := Batch(nil)
	if err != nil || len(cmds) != 0 {
		t.Fatalf("Batch(nil) = %v, %v; want no commands", cmds, err)
	}
}

func TestBatchSplitsLargePayload(t *testing.T) {
	perCmd := MaxBatchBytes / GroupLen
	updates := make([]Update, perCmd+7)
	for i := range updates {
		updates[i] = Update{Local: i % 800, Color: led.Color{R: uint8(i)}}
	}
	cmds, err := Batch(updates)
	if err != nil {
		t.Fatalf("Batch: %v", err)
	}
	if len(cmds) != 2 {
		t.Fatalf("got %d commands, want 2", len(cmds))
	}
	total := 0
	for _, c := range cmds {
		n := int(c[1])<<8 | int(c[2])
		if n != len(c)-3 {
			t.Errorf("count field %d, payload %d", n, len(c)-3)
		}
		if n%GroupLen != 0 {
			t.Errorf("count %d is not whole groups", n)
		}
		total += n / GroupLen
	}
	if total != len(updates) {
		t.Errorf("split carries %d updates, want %d", total, len(updates))
	}
}

func TestFrameBytes(t *testing.T) {
	c := led.Color{R: 7, G: 8, B: 9}
	got := Frame(led.Fill(4, c))
	if got[0] != 'A' || len(got) != 1+12 {
		t.Fatalf("Frame header/len wrong: % x", got)
	}
	for i := 1; i < len(got); i += 3 {
		if got[i] != 7 || got[i+1] != 8 || got[i+2] != 9 {
			t.Errorf("group at %d = % x", i, got[i:i+3])
		}
	}
}

func TestQueriesAndReplies(t *testing.T) {
	g, err := Get(513)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(g, []byte{'G', 0x02, 0x01}) {
		t.Errorf("Get = % x", g)
	}
	if string(Brightness()) != "B" || string(Clear()) != "CLS" || string(IdentifyRequest()) != "ID\n" {
		t.Error("fixed opcodes changed")
	}
	if got := DecodeBrightness([2]byte{0x03, 0xff}); got != 1023 {
		t.Errorf("DecodeBrightness = %d", got)
	}
	if got := DecodeColor([3]byte{1, 2, 3}); got != (led.Color{R: 1, G: 2, B: 3}) {
		t.Errorf("DecodeColor = %v", got)
	}
}

func TestParseIdentity(t *testing.T) {
	id, err := ParseIdentity("Teensy2\r\n")
	if err != nil || id != "Teensy2" {
		t.Errorf("ParseIdentity = %q, %v", id, err)
	}
	if _, err := ParseIdentity("hello\n"); err == nil {
		t.Error("expected error for non-Teensy reply")
	}
}

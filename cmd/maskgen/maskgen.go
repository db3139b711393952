// Command maskgen builds the pixel-to-LED mask for a geometry file and can
// render a preview of the result.
package main

import (
	"flag"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"log"
	"os"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
	"github.com/banshee-data/display1593/internal/mask"
	"github.com/banshee-data/display1593/internal/preview"
)

var (
	geometryPath = flag.String("geometry", "", "Geometry JSON file (empty uses the synthetic layout)")
	split        = flag.Int("split", 800, "Controller 0 LED count for the synthetic layout")
	size         = flag.Int("size", mask.DefaultSize, "Mask edge length in pixels")
	out          = flag.String("out", "mask.json", "Where to write the mask")
	geometryOut  = flag.String("geometry-out", "", "Also write the geometry used to this file")
	previewOut   = flag.String("preview", "", "Write a PNG showing each LED's share of the mask")
	ownersOut    = flag.String("owners", "", "Write a mask-sized PNG colouring every pixel by the LED that owns it")
)

func main() {
	flag.Parse()
	log.SetFlags(log.LstdFlags)
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	table, err := loadTable()
	if err != nil {
		return err
	}
	if *geometryOut != "" {
		if err := table.Save(*geometryOut); err != nil {
			return err
		}
	}

	m, err := mask.Build(table, *size)
	if err != nil {
		return err
	}
	if err := m.Save(*out); err != nil {
		return err
	}
	log.Printf("wrote %dx%d mask for %d leds to %s", m.Size, m.Size, len(m.Pixels), *out)

	if *previewOut != "" {
		if err := writePreview(table, m, *previewOut); err != nil {
			return err
		}
		log.Printf("wrote preview to %s", *previewOut)
	}
	if *ownersOut != "" {
		if err := writeOwners(m, *ownersOut); err != nil {
			return err
		}
		log.Printf("wrote pixel owners to %s", *ownersOut)
	}
	return nil
}

func loadTable() (*geometry.Table, error) {
	if *geometryPath == "" {
		return geometry.Synthetic(*split), nil
	}
	return geometry.Load(*geometryPath)
}

// writePreview shades each LED by the number of pixels it owns, so badly
// covered LEDs stand out as dark discs.
func writePreview(table *geometry.Table, m *mask.Mask, path string) error {
	most := 1
	for _, px := range m.Pixels {
		most = max(most, len(px))
	}
	colors := make([]led.Color, led.Count)
	for id, px := range m.Pixels {
		v := 255 * len(px) / most
		colors[id] = led.Clamp(v, v, v)
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := preview.RenderPNG(f, table, colors, 800, false); err != nil {
		f.Close()
		return fmt.Errorf("failed to render preview: %w", err)
	}
	return f.Close()
}

// ownerColor scatters neighbouring ids across the colour cube so adjacent
// cells are distinguishable.
func ownerColor(id led.ID) color.NRGBA {
	h := uint32(id) * 2654435761
	return color.NRGBA{R: uint8(h >> 24), G: uint8(h >> 16), B: uint8(h >> 8), A: 0xff}
}

// writeOwners draws the mask partition itself, one pixel per mask pixel.
func writeOwners(m *mask.Mask, path string) error {
	img := image.NewNRGBA(image.Rect(0, 0, m.Size, m.Size))
	for p, id := range m.Owners() {
		img.SetNRGBA(p%m.Size, p/m.Size, ownerColor(id))
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("failed to encode owners image: %w", err)
	}
	return f.Close()
}

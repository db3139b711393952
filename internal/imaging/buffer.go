// Package imaging converts arbitrary images into LED colours: crop to a
// square, resize to the mask size, average each LED's pixels, and optionally
// correct the result for a brightness level.
package imaging

import (
	"fmt"
	"image"
	"image/color"
	"io"
	"os"

	// Decoders accepted by Open.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// Buffer is the canonical in-memory pixel buffer: Height rows of Width
// pixels, each Channels interleaved bytes, row-major.
type Buffer struct {
	Width    int
	Height   int
	Channels int
	Pix      []uint8
}

// FromArray wraps raw interleaved pixel data. data is not copied.
func FromArray(width, height, channels int, data []uint8) (*Buffer, error) {
	if width <= 0 || height <= 0 || channels <= 0 {
		return nil, fmt.Errorf("invalid image shape %dx%dx%d", width, height, channels)
	}
	if len(data) != width*height*channels {
		return nil, fmt.Errorf("image data has %d bytes, want %d for %dx%dx%d",
			len(data), width*height*channels, width, height, channels)
	}
	return &Buffer{Width: width, Height: height, Channels: channels, Pix: data}, nil
}

// FromImage copies img into a Buffer. Grayscale images keep one channel;
// everything else becomes non-premultiplied RGB with alpha dropped.
func FromImage(img image.Image) *Buffer {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	switch src := img.(type) {
	case *image.Gray:
		buf := &Buffer{Width: w, Height: h, Channels: 1, Pix: make([]uint8, w*h)}
		for y := 0; y < h; y++ {
			o := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(buf.Pix[y*w:(y+1)*w], src.Pix[o:o+w])
		}
		return buf
	}

	buf := &Buffer{Width: w, Height: h, Channels: 3, Pix: make([]uint8, w*h*3)}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := color.NRGBAModel.Convert(img.At(x, y)).(color.NRGBA)
			buf.Pix[i], buf.Pix[i+1], buf.Pix[i+2] = c.R, c.G, c.B
			i += 3
		}
	}
	return buf
}

// Open decodes an image file in any registered format.
func Open(path string) (*Buffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image: %w", err)
	}
	defer f.Close()

	buf, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return buf, nil
}

// Decode reads one image in any registered format from r.
func Decode(r io.Reader) (*Buffer, error) {
	img, _, err := image.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return FromImage(img), nil
}

// RGBA returns the buffer as an opaque image. The buffer must have three
// channels.
func (b *Buffer) RGBA() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, b.Width, b.Height))
	for i, j := 0, 0; i < len(b.Pix); i, j = i+3, j+4 {
		img.Pix[j], img.Pix[j+1], img.Pix[j+2], img.Pix[j+3] = b.Pix[i], b.Pix[i+1], b.Pix[i+2], 0xff
	}
	return img
}

// at returns the channel values of the pixel at (x, y).
func (b *Buffer) at(x, y int) []uint8 {
	o := (y*b.Width + x) * b.Channels
	return b.Pix[o : o+b.Channels]
}

package mask

import (
	"fmt"

	"gonum.org/v1/gonum/spatial/kdtree"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
)

// Build computes a mask offline by assigning each pixel centre of a
// size x size image to its nearest LED centre (a discrete Voronoi
// partition). LEDs that end up with no pixel take the closest pixel from a
// neighbour that owns more than one, so the result always satisfies
// Validate.
func Build(table *geometry.Table, size int) (*Mask, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid mask size %d", size)
	}
	if size*size < led.Count {
		return nil, fmt.Errorf("a %dx%d image has fewer pixels than the %d leds", size, size, led.Count)
	}

	placements := table.All()
	pts := make(ledPoints, len(placements))
	for i, p := range placements {
		pts[i] = ledPoint{x: p.X, y: p.Y, id: int(p.ID)}
	}
	// kdtree.New reorders its input; pts stays indexed by LED id.
	tree := kdtree.New(append(ledPoints(nil), pts...), false)

	w, h := table.Size()
	sx, sy := w/float64(size), h/float64(size)
	centre := func(pixel int) ledPoint {
		x, y := pixel%size, pixel/size
		return ledPoint{x: (float64(x) + 0.5) * sx, y: (float64(y) + 0.5) * sy, id: -1}
	}

	owner := make([]int, size*size)
	counts := make([]int, led.Count)
	for p := range owner {
		got, _ := tree.Nearest(centre(p))
		id := got.(ledPoint).id
		owner[p] = id
		counts[id]++
	}

	for id := range counts {
		if counts[id] > 0 {
			continue
		}
		lp := pts[id]
		best, bestDist := -1, 0.0
		for p, o := range owner {
			if counts[o] < 2 {
				continue
			}
			d := lp.Distance(centre(p))
			if best < 0 || d < bestDist {
				best, bestDist = p, d
			}
		}
		if best < 0 {
			return nil, fmt.Errorf("led %d: no pixel available to donate", id)
		}
		counts[owner[best]]--
		owner[best] = id
		counts[id]++
	}

	m := &Mask{Size: size, Pixels: make([][]int32, led.Count)}
	for id := range m.Pixels {
		m.Pixels[id] = make([]int32, 0, counts[id])
	}
	for p, o := range owner {
		m.Pixels[o] = append(m.Pixels[o], int32(p))
	}
	return m, nil
}

type ledPoint struct {
	x, y float64
	id   int
}

func (p ledPoint) Compare(c kdtree.Comparable, d kdtree.Dim) float64 {
	q := c.(ledPoint)
	if d == 0 {
		return p.x - q.x
	}
	return p.y - q.y
}

func (p ledPoint) Dims() int { return 2 }

// Distance is the squared euclidean distance, as kdtree expects.
func (p ledPoint) Distance(c kdtree.Comparable) float64 {
	q := c.(ledPoint)
	dx, dy := p.x-q.x, p.y-q.y
	return dx*dx + dy*dy
}

type ledPoints []ledPoint

func (p ledPoints) Index(i int) kdtree.Comparable { return p[i] }
func (p ledPoints) Len() int                      { return len(p) }
func (p ledPoints) Pivot(d kdtree.Dim) int {
	return plane{ledPoints: p, Dim: d}.Pivot()
}
func (p ledPoints) Slice(start, end int) kdtree.Interface { return p[start:end] }

type plane struct {
	kdtree.Dim
	ledPoints
}

func (p plane) Less(i, j int) bool {
	a, b := p.ledPoints[i], p.ledPoints[j]
	if p.Dim == 0 {
		return a.x < b.x
	}
	return a.y < b.y
}

func (p plane) Pivot() int { return kdtree.Partition(p, kdtree.MedianOfMedians(p)) }

func (p plane) Slice(start, end int) kdtree.SortSlicer {
	p.ledPoints = p.ledPoints[start:end]
	return p
}

func (p plane) Swap(i, j int) {
	p.ledPoints[i], p.ledPoints[j] = p.ledPoints[j], p.ledPoints[i]
}

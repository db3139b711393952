package preview

import (
	"fmt"
	"io"
	"slices"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/display1593/internal/geometry"
	"github.com/banshee-data/display1593/internal/led"
)

// AssetsHost serves the echarts javascript for rendered pages.
const AssetsHost = "https://go-echarts.github.io/go-echarts-assets/assets/"

// quantum groups nearby colors into one series so a full image frame stays
// within a few hundred series.
const quantum = 16

func hex(c led.Color) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// RenderHTML writes an interactive scatter page of colors, indexed by LED
// id. Hovering an LED shows its id and color.
func RenderHTML(w io.Writer, table *geometry.Table, colors []led.Color, title string, boost bool) error {
	if err := checkColors(colors); err != nil {
		return err
	}

	series := map[string][]opts.ScatterData{}
	xys := points(table)
	for i, c := range colors {
		if boost {
			c = BoostColor(c)
		}
		q := led.Color{R: c.R / quantum * quantum, G: c.G / quantum * quantum, B: c.B / quantum * quantum}
		key := hex(q)
		series[key] = append(series[key], opts.ScatterData{
			Name:  fmt.Sprintf("led %d %s", i, colors[i]),
			Value: []interface{}{xys[i].X, xys[i].Y},
		})
	}

	width, height := table.Size()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px", AssetsHost: AssetsHost}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("leds=%d series=%d", len(colors), len(series))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
		charts.WithXAxisOpts(opts.XAxis{Min: 0, Max: width, Show: opts.Bool(false)}),
		charts.WithYAxisOpts(opts.YAxis{Min: 0, Max: height, Show: opts.Bool(false)}),
	)

	keys := make([]string, 0, len(series))
	for k := range series {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		scatter.AddSeries(k, series[k],
			charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
			charts.WithItemStyleOpts(opts.ItemStyle{Color: k}),
		)
	}
	return scatter.Render(w)
}

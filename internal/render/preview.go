package render

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"log/slog"
	"sort"

	geojson "github.com/paulmach/go.geojson"

	"github.com/spatialplot/globeviz/internal/geo"
	"github.com/spatialplot/globeviz/internal/model"
	"github.com/spatialplot/globeviz/internal/quantile"
)

// Web Mercator half-extent in meters. EPSG:3857 is square, so one constant
// serves both axes.
const mercatorHalfWorld = 20037508.342789244

// Marker square side in pixels at fraction 0 and the growth up to 1.
const (
	markerMinSide  = 3
	markerSideSpan = 9
)

var (
	previewBackground = color.RGBA{8, 10, 15, 255}
	previewLand       = color.RGBA{26, 29, 35, 255}
	previewOutline    = color.RGBA{36, 42, 53, 255}
	previewSelected   = color.RGBA{255, 255, 255, 255}

	// Quintile ramp, low red to high green.
	binColors = [...]color.RGBA{
		{178, 24, 43, 255},
		{239, 138, 98, 255},
		{254, 224, 144, 255},
		{145, 207, 96, 255},
		{26, 152, 80, 255},
	}
)

// Preview draws one year of samples onto a flat Web-Mercator map: country
// outlines under quintile-colored squares sized by each sample's share of
// the global maximum. It is the quick visual check for classification and
// placement without a 3D client.
type Preview struct {
	width    int
	height   int
	features []*geojson.Feature
	logger   *slog.Logger
}

// NewPreview creates a Preview rendering width by height frames.
// Non-positive dimensions fall back to 1024.
func NewPreview(width, height int, logger *slog.Logger) *Preview {
	if width <= 0 {
		width = 1024
	}
	if height <= 0 {
		height = 1024
	}
	return &Preview{width: width, height: height, logger: logger}
}

// SetOutline parses a GeoJSON FeatureCollection of country shapes and keeps
// its features for the basemap. Without an outline only markers are drawn.
func (p *Preview) SetOutline(raw []byte) error {
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	if err != nil {
		return fmt.Errorf("error parsing outline GeoJSON: %w", err)
	}
	p.features = fc.Features
	p.logger.Info("Loaded preview outlines", "features", len(p.features))
	return nil
}

// Render draws the samples for one pass and returns the finished frame.
// Classification matches the globe: boundaries come from the same sample
// set, and marker size follows the same global-maximum fraction rule.
func (p *Preview) Render(samples []model.MetricSample, globalMax float64, selectedKey string) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, p.width, p.height))
	draw.Draw(img, img.Bounds(), &image.Uniform{previewBackground}, image.Point{}, draw.Src)

	p.drawBasemap(img)

	values := make([]float64, 0, len(samples))
	for _, s := range samples {
		if s.Value != nil {
			values = append(values, *s.Value)
		}
	}
	boundaries := quantile.ComputeBoundaries(values)

	for _, s := range samples {
		if !s.Plottable() {
			continue
		}
		bin := quantile.Classify(*s.Value, boundaries)
		p.drawMarker(img, s, bin, globalMax, s.Key == selectedKey)
	}
	return img
}

// WritePNG renders the samples and encodes the frame to w.
func (p *Preview) WritePNG(w io.Writer, samples []model.MetricSample, globalMax float64, selectedKey string) error {
	return png.Encode(w, p.Render(samples, globalMax, selectedKey))
}

func (p *Preview) drawBasemap(img *image.RGBA) {
	for _, f := range p.features {
		if f.Geometry == nil {
			continue
		}
		if f.Geometry.IsPolygon() {
			p.fillPolygon(img, f.Geometry.Polygon, previewLand)
			for _, ring := range f.Geometry.Polygon {
				p.drawRing(img, ring, previewOutline)
			}
		} else if f.Geometry.IsMultiPolygon() {
			for _, poly := range f.Geometry.MultiPolygon {
				p.fillPolygon(img, poly, previewLand)
				for _, ring := range poly {
					p.drawRing(img, ring, previewOutline)
				}
			}
		}
	}
}

func (p *Preview) drawMarker(img *image.RGBA, s model.MetricSample, bin int, globalMax float64, selected bool) {
	x, y, ok := p.toPixel(*s.Lat, *s.Lon)
	if !ok {
		p.logger.Debug("Skipping marker outside projection", "key", s.Key)
		return
	}

	// Same height rule as the globe: share of the all-time maximum, with
	// negative values pinned to a small fixed fraction.
	fraction := *s.Value / globalMax
	if *s.Value < 0 {
		fraction = 0.1 / globalMax
	}
	if fraction > 1 {
		fraction = 1
	}
	if fraction < 0 {
		fraction = 0
	}

	side := markerMinSide + int(fraction*markerSideSpan)
	half := side / 2
	rect := image.Rect(x-half, y-half, x-half+side, y-half+side)
	draw.Draw(img, rect.Intersect(img.Bounds()), &image.Uniform{binColor(bin)}, image.Point{}, draw.Src)

	if selected {
		p.drawRect(img, rect.Inset(-2), previewSelected)
	}
}

// binColor returns the ramp color for a bin, falling back to the middle
// bin for anything out of range.
func binColor(bin int) color.RGBA {
	if bin < 0 || bin >= len(binColors) {
		bin = quantile.DefaultBin
	}
	return binColors[bin]
}

// toPixel maps WGS84 coordinates onto the frame through EPSG:3857.
func (p *Preview) toPixel(lat, lon float64) (int, int, bool) {
	pt, err := geo.ToWebMercator(lat, lon)
	if err != nil {
		return 0, 0, false
	}
	c, _ := pt.Coordinates()
	return p.pixelX(c.XY.X), p.pixelY(c.XY.Y), true
}

func (p *Preview) pixelX(x float64) int {
	return int((x + mercatorHalfWorld) / (2 * mercatorHalfWorld) * float64(p.width))
}

func (p *Preview) pixelY(y float64) int {
	return int((mercatorHalfWorld - y) / (2 * mercatorHalfWorld) * float64(p.height))
}

// drawRing strokes one polygon ring. Rings that fail projection are
// skipped; a basemap gap is better than no frame.
func (p *Preview) drawRing(img *image.RGBA, ring [][]float64, c color.RGBA) {
	ls, err := geo.ProjectRing(ring)
	if err != nil {
		p.logger.Debug("Skipping outline ring", "error", err)
		return
	}
	seq := ls.Coordinates()
	for i := 0; i+1 < seq.Length(); i++ {
		a := seq.GetXY(i)
		b := seq.GetXY(i + 1)
		drawLine(img,
			p.pixelX(a.X), p.pixelY(a.Y),
			p.pixelX(b.X), p.pixelY(b.Y),
			c)
	}
}

// fillPolygon paints the interior of one polygon (outer ring plus holes)
// with an even-odd scanline sweep.
func (p *Preview) fillPolygon(img *image.RGBA, rings [][][]float64, c color.RGBA) {
	if len(rings) == 0 {
		return
	}
	type point struct{ x, y float64 }
	projected := make([][]point, 0, len(rings))
	minY, maxY := float64(p.height), 0.0
	for _, ring := range rings {
		ls, err := geo.ProjectRing(ring)
		if err != nil {
			p.logger.Debug("Skipping fill ring", "error", err)
			continue
		}
		seq := ls.Coordinates()
		pts := make([]point, seq.Length())
		for i := 0; i < seq.Length(); i++ {
			xy := seq.GetXY(i)
			// Float pixels here; rounding before the scanline sweep would
			// jag the fill edges.
			x := (xy.X + mercatorHalfWorld) / (2 * mercatorHalfWorld) * float64(p.width)
			y := (mercatorHalfWorld - xy.Y) / (2 * mercatorHalfWorld) * float64(p.height)
			pts[i] = point{x, y}
			if y < minY {
				minY = y
			}
			if y > maxY {
				maxY = y
			}
		}
		projected = append(projected, pts)
	}
	for y := int(minY); y <= int(maxY); y++ {
		if y < 0 || y >= p.height {
			continue
		}
		var nodes []int
		fy := float64(y)
		for _, ring := range projected {
			for i := 0; i < len(ring); i++ {
				j := (i + 1) % len(ring)
				if (ring[i].y < fy && ring[j].y >= fy) || (ring[j].y < fy && ring[i].y >= fy) {
					nodeX := ring[i].x + (fy-ring[i].y)/(ring[j].y-ring[i].y)*(ring[j].x-ring[i].x)
					nodes = append(nodes, int(nodeX))
				}
			}
		}
		sort.Ints(nodes)
		for i := 0; i+1 < len(nodes); i += 2 {
			xs, xe := nodes[i], nodes[i+1]
			if xs < 0 {
				xs = 0
			}
			if xe >= p.width {
				xe = p.width - 1
			}
			for x := xs; x < xe; x++ {
				img.SetRGBA(x, y, c)
			}
		}
	}
}

// drawRect strokes the rectangle border.
func (p *Preview) drawRect(img *image.RGBA, r image.Rectangle, c color.RGBA) {
	drawLine(img, r.Min.X, r.Min.Y, r.Max.X, r.Min.Y, c)
	drawLine(img, r.Max.X, r.Min.Y, r.Max.X, r.Max.Y, c)
	drawLine(img, r.Max.X, r.Max.Y, r.Min.X, r.Max.Y, c)
	drawLine(img, r.Min.X, r.Max.Y, r.Min.X, r.Min.Y, c)
}

// drawLine rasterizes a segment with Bresenham's algorithm. SetRGBA
// discards out-of-bounds pixels, so no clipping is needed here.
func drawLine(img *image.RGBA, x1, y1, x2, y2 int, c color.RGBA) {
	dx, dy := abs(x2-x1), abs(y2-y1)
	sx, sy := -1, -1
	if x1 < x2 {
		sx = 1
	}
	if y1 < y2 {
		sy = 1
	}
	e := dx - dy
	for {
		img.SetRGBA(x1, y1, c)
		if x1 == x2 && y1 == y2 {
			return
		}
		e2 := 2 * e
		if e2 > -dy {
			e -= dy
			x1 += sx
		}
		if e2 < dx {
			e += dx
			y1 += sy
		}
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

package mesh

import (
	"image/color"
	"image/png"
	"io"
	"math"

	"github.com/tdewolff/canvas"
	"github.com/tdewolff/canvas/renderers/rasterizer"
	"github.com/tdewolff/canvas/renderers/svg"
)

// nrgbaToRGBA converts color.NRGBA to color.RGBA by premultiplying alpha
// This is needed for the canvas library which expects premultiplied RGBA
func nrgbaToRGBA(c color.NRGBA) color.RGBA {
	if c.A == 0 {
		return color.RGBA{0, 0, 0, 0}
	}
	if c.A == 255 {
		return color.RGBA{c.R, c.G, c.B, 255}
	}
	// Premultiply: multiply RGB by alpha
	alpha32 := uint32(c.A)
	return color.RGBA{
		R: uint8((uint32(c.R) * alpha32) / 255),
		G: uint8((uint32(c.G) * alpha32) / 255),
		B: uint8((uint32(c.B) * alpha32) / 255),
		A: c.A,
	}
}

// VectorRenderer renders an assembled beacon map as vector graphics
type VectorRenderer struct {
	View         *MapView
	Colors       []ScannerColor
	Scale        float64           // Canvas millimeters per world unit
	Padding      float64           // Padding in world units
	BeaconRadius float64           // Beacon marker radius in world units
	Resolution   canvas.Resolution // Resolution for PNG output
	GridSpacing  float64           // Grid line spacing in world units; 0 disables
}

// NewVectorRenderer creates a vector renderer with default settings
func NewVectorRenderer(view *MapView) *VectorRenderer {
	return &VectorRenderer{
		View:         view,
		Colors:       DefaultColors(),
		Scale:        0.25,
		Padding:      200.0,
		BeaconRadius: 25.0,
		Resolution:   canvas.DPI(150),
		GridSpacing:  0,
	}
}

// ApplyConfig overrides the defaults with non-zero render settings.
func (r *VectorRenderer) ApplyConfig(cfg RenderConfig) {
	if cfg.Scale > 0 {
		r.Scale = cfg.Scale
	}
	if cfg.Padding > 0 {
		r.Padding = cfg.Padding
	}
	if cfg.GridSpacing > 0 {
		r.GridSpacing = cfg.GridSpacing
	}
	if cfg.Resolution > 0 {
		r.Resolution = canvas.DPI(cfg.Resolution)
	}
}

// canvasRenderer is an interface that both svg and rasterizer renderers implement
type canvasRenderer interface {
	RenderPath(path *canvas.Path, style canvas.Style, m canvas.Matrix)
}

// size returns the canvas dimensions in millimeters.
func (r *VectorRenderer) size() (width, height float64) {
	b := r.View.Bound()
	width = ((b.Max[0] - b.Min[0]) + 2*r.Padding) * r.Scale
	height = ((b.Max[1] - b.Min[1]) + 2*r.Padding) * r.Scale
	return width, height
}

// RenderToSVG writes the map as an SVG to the provided writer
func (r *VectorRenderer) RenderToSVG(w io.Writer) error {
	width, height := r.size()

	svgRenderer := svg.New(w, width, height, nil)
	r.renderToCanvas(svgRenderer, width, height)

	// Close writes the closing tags
	return svgRenderer.Close()
}

// RenderToPNG writes the map as a PNG to the provided writer
func (r *VectorRenderer) RenderToPNG(w io.Writer) error {
	width, height := r.size()

	rast := rasterizer.New(width, height, r.Resolution, canvas.DefaultColorSpace)
	r.renderToCanvas(rast, width, height)

	// Rasterizer implements draw.Image
	return png.Encode(w, rast)
}

// renderToCanvas draws background, grid, beacons and scanner origins.
func (r *VectorRenderer) renderToCanvas(renderer canvasRenderer, width, height float64) {
	b := r.View.Bound()
	minX, minY := b.Min[0], b.Min[1]
	maxX, maxY := b.Max[0], b.Max[1]

	bgStyle := canvas.DefaultStyle
	bgStyle.Fill = canvas.Paint{Color: canvas.White}
	renderer.RenderPath(canvas.Rectangle(width, height), bgStyle, canvas.Identity)

	toCanvas := func(x, y float64) (float64, float64) {
		return (x - minX + r.Padding) * r.Scale, (y - minY + r.Padding) * r.Scale
	}

	if r.GridSpacing > 0 {
		gridStyle := canvas.DefaultStyle
		gridStyle.Fill = canvas.Paint{Color: canvas.Transparent}
		gridStyle.Stroke = canvas.Paint{Color: canvas.Gray}
		gridStyle.StrokeWidth = 0.5
		gridStyle.Dashes = []float64{2.0, 2.0}

		for x := math.Floor(minX/r.GridSpacing) * r.GridSpacing; x <= maxX; x += r.GridSpacing {
			gridPath := &canvas.Path{}
			x1, y1 := toCanvas(x, minY)
			x2, y2 := toCanvas(x, maxY)
			gridPath.MoveTo(x1, y1)
			gridPath.LineTo(x2, y2)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}

		for y := math.Floor(minY/r.GridSpacing) * r.GridSpacing; y <= maxY; y += r.GridSpacing {
			gridPath := &canvas.Path{}
			x1, y1 := toCanvas(minX, y)
			x2, y2 := toCanvas(maxX, y)
			gridPath.MoveTo(x1, y1)
			gridPath.LineTo(x2, y2)
			renderer.RenderPath(gridPath, gridStyle, canvas.Identity)
		}
	}

	radius := r.BeaconRadius * r.Scale

	mergedStyle := canvas.DefaultStyle
	mergedStyle.Fill = canvas.Paint{Color: color.RGBA{211, 211, 211, 255}}
	mergedStyle.Stroke = canvas.Paint{Color: canvas.Gray}
	mergedStyle.StrokeWidth = radius / 4
	for _, p := range r.View.Beacons {
		cx, cy := toCanvas(float64(p.X), float64(p.Y))
		renderer.RenderPath(canvas.Circle(radius).Translate(cx, cy), mergedStyle, canvas.Identity)
	}

	for i, l := range r.View.Layers {
		sc := layerColor(r.Colors, l, i)
		beaconStyle := canvas.DefaultStyle
		beaconStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(sc.Beacon)}
		beaconStyle.Stroke = canvas.Paint{Color: canvas.Transparent}
		for _, p := range l.Beacons {
			cx, cy := toCanvas(float64(p.X), float64(p.Y))
			renderer.RenderPath(canvas.Circle(radius*0.6).Translate(cx, cy), beaconStyle, canvas.Identity)
		}
	}

	// Scanner origins on top, as squares centered on the position
	side := 4 * radius
	for i, l := range r.View.Layers {
		sc := layerColor(r.Colors, l, i)
		originStyle := canvas.DefaultStyle
		originStyle.Fill = canvas.Paint{Color: nrgbaToRGBA(sc.Origin)}
		originStyle.Stroke = canvas.Paint{Color: canvas.Black}
		originStyle.StrokeWidth = radius / 4

		cx, cy := toCanvas(float64(l.Origin.X), float64(l.Origin.Y))
		path := canvas.Rectangle(side, side).Translate(cx-side/2, cy-side/2)
		renderer.RenderPath(path, originStyle, canvas.Identity)
	}
}

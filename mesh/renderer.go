package mesh

import (
	"image"
	"image/color"
	"image/png"
	"math"
	"os"

	"github.com/paulmach/orb"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// ScannerColor defines the colors for one scanner's map elements
type ScannerColor struct {
	Beacon color.NRGBA
	Origin color.NRGBA
}

// DefaultColors returns distinct colors; the first is used for the reference.
func DefaultColors() []ScannerColor {
	return []ScannerColor{
		{Beacon: color.NRGBA{100, 149, 237, 255}, Origin: color.NRGBA{0, 0, 139, 255}},   // Blue
		{Beacon: color.NRGBA{255, 99, 71, 255}, Origin: color.NRGBA{139, 0, 0, 255}},     // Red
		{Beacon: color.NRGBA{60, 179, 113, 255}, Origin: color.NRGBA{0, 100, 0, 255}},    // Green
		{Beacon: color.NRGBA{238, 201, 0, 255}, Origin: color.NRGBA{184, 134, 11, 255}},  // Gold
		{Beacon: color.NRGBA{186, 85, 211, 255}, Origin: color.NRGBA{85, 26, 139, 255}},  // Orchid
		{Beacon: color.NRGBA{72, 209, 204, 255}, Origin: color.NRGBA{0, 128, 128, 255}},  // Teal
	}
}

// ScannerLayer is one scanner's contribution in the global frame.
type ScannerLayer struct {
	Name      string
	Origin    Point
	Beacons   []Point
	Reference bool
}

// MapView is the drawable content of an assembled map.
type MapView struct {
	Beacons []Point
	Layers  []ScannerLayer
}

// NewMapView collects the merged beacons plus one layer per integrated
// scanner. The reference layer carries no beacons of its own because its set
// is the merged one.
func NewMapView(origin *Scanner, scanners []*Scanner) *MapView {
	view := &MapView{Beacons: origin.Beacons.Points()}
	for _, s := range scanners {
		if s.Transform == nil {
			continue
		}
		layer := ScannerLayer{
			Name:      s.Name,
			Origin:    s.Transform.Translation,
			Reference: s == origin,
		}
		if !layer.Reference {
			layer.Beacons = TransformPoints(s.Beacons.Points(), *s.Transform)
		}
		view.Layers = append(view.Layers, layer)
	}
	return view
}

// Bound returns the XY bounds of all beacons and scanner origins.
func (v *MapView) Bound() orb.Bound {
	pts := append([]Point(nil), v.Beacons...)
	for _, l := range v.Layers {
		pts = append(pts, l.Origin)
	}
	return ProjectedBound(pts)
}

// HasDrawableContent returns true if the view has anything to draw.
func (v *MapView) HasDrawableContent() bool {
	return v != nil && (len(v.Beacons) > 0 || len(v.Layers) > 0)
}

// layerColor picks the palette entry for layer i.
func layerColor(colors []ScannerColor, l ScannerLayer, i int) ScannerColor {
	if l.Reference || len(colors) == 1 {
		return colors[0]
	}
	return colors[1+i%(len(colors)-1)]
}

// CompositeRenderer renders a top-down raster image of the assembled map
type CompositeRenderer struct {
	View         *MapView
	Colors       []ScannerColor
	Scale        float64 // Pixels per world unit
	Padding      int     // Padding around the image in pixels
	BeaconRadius int
}

// NewCompositeRenderer creates a renderer with default settings
func NewCompositeRenderer(view *MapView) *CompositeRenderer {
	return &CompositeRenderer{
		View:         view,
		Colors:       DefaultColors(),
		Scale:        0.25,
		Padding:      30,
		BeaconRadius: 3,
	}
}

// Render draws the merged beacons, each scanner's beacons in its own color,
// scanner origins as squares, and a legend.
func (r *CompositeRenderer) Render() *image.RGBA {
	b := r.View.Bound()
	width := int(math.Ceil((b.Max[0]-b.Min[0])*r.Scale)) + 2*r.Padding + 1
	height := int(math.Ceil((b.Max[1]-b.Min[1])*r.Scale)) + 2*r.Padding + 1

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}

	// Y grows upward in world space and downward in image space.
	toPixel := func(p Point) (int, int) {
		x := (float64(p.X)-b.Min[0])*r.Scale + float64(r.Padding)
		y := (b.Max[1]-float64(p.Y))*r.Scale + float64(r.Padding)
		return int(math.Round(x)), int(math.Round(y))
	}

	grey := color.RGBA{160, 160, 160, 255}
	for _, p := range r.View.Beacons {
		x, y := toPixel(p)
		drawCircle(img, x, y, r.BeaconRadius, grey)
	}

	for i, l := range r.View.Layers {
		sc := layerColor(r.Colors, l, i)
		for _, p := range l.Beacons {
			x, y := toPixel(p)
			drawCircle(img, x, y, r.BeaconRadius, nrgbaToRGBA(sc.Beacon))
		}
	}

	for i, l := range r.View.Layers {
		sc := layerColor(r.Colors, l, i)
		x, y := toPixel(l.Origin)
		drawSquare(img, x, y, 4*r.BeaconRadius, nrgbaToRGBA(sc.Origin))
	}

	r.drawLegend(img)
	return img
}

// SavePNG saves the composite image to a file
func (r *CompositeRenderer) SavePNG(path string) error {
	img := r.Render()

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()

	return png.Encode(f, img)
}

// drawCircle draws a filled circle
func drawCircle(img *image.RGBA, cx, cy, radius int, c color.RGBA) {
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			if dx*dx+dy*dy <= radius*radius {
				x, y := cx+dx, cy+dy
				if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
					img.Set(x, y, c)
				}
			}
		}
	}
}

// drawSquare draws a filled square
func drawSquare(img *image.RGBA, cx, cy, size int, c color.RGBA) {
	half := size / 2
	for dy := -half; dy <= half; dy++ {
		for dx := -half; dx <= half; dx++ {
			x, y := cx+dx, cy+dy
			if x >= 0 && x < img.Bounds().Max.X && y >= 0 && y < img.Bounds().Max.Y {
				img.Set(x, y, c)
			}
		}
	}
}

// drawLegend lists the scanners in the top-left corner in layer order
func (r *CompositeRenderer) drawLegend(img *image.RGBA) {
	y := 15
	for i, l := range r.View.Layers {
		sc := layerColor(r.Colors, l, i)
		for dy := 0; dy < 10; dy++ {
			for dx := 0; dx < 10; dx++ {
				img.Set(10+dx, y+dy-8, sc.Origin)
			}
		}
		drawText(img, 26, y, l.Name, color.RGBA{0, 0, 0, 255})
		y += 16
	}
}

// drawText renders text onto an image at the specified position
func drawText(img *image.RGBA, x, y int, text string, c color.RGBA) {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(c),
		Face: basicfont.Face7x13,
		Dot:  fixed.Point26_6{X: fixed.I(x), Y: fixed.I(y)},
	}
	d.DrawString(text)
}

// Package compositor arranges camera frames into a labeled 2x2 grid.
package compositor

import (
	"image"
	"image/color"
	"image/draw"

	xdraw "golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"teslacam/models"
)

// Default cell size; the composite is twice as wide and twice as tall.
const (
	DefaultCellWidth  = 480
	DefaultCellHeight = 270
)

const (
	labelBandHeight = 20
	labelPadding    = 6
)

var (
	labelBand   = color.RGBA{A: 128}
	labelText   = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	placeholder = color.RGBA{R: 32, G: 32, B: 32, A: 255}
)

// Compositor renders frames into a fixed grid in camera order front, back,
// left, right. Rendering is deterministic.
type Compositor struct {
	cellW, cellH int
	scaler       xdraw.Scaler
	face         font.Face
}

// New creates a compositor with the given cell size. Non-positive sizes
// fall back to the defaults.
func New(cellW, cellH int) *Compositor {
	if cellW <= 0 || cellH <= 0 {
		cellW, cellH = DefaultCellWidth, DefaultCellHeight
	}
	return &Compositor{
		cellW:  cellW,
		cellH:  cellH,
		scaler: xdraw.ApproxBiLinear,
		face:   basicfont.Face7x13,
	}
}

// Size returns the composite dimensions.
func (c *Compositor) Size() (width, height int) {
	return c.cellW * 2, c.cellH * 2
}

// CellRect returns the grid cell for a camera.
func (c *Compositor) CellRect(cam models.Camera) image.Rectangle {
	i := int(cam)
	x := (i % 2) * c.cellW
	y := (i / 2) * c.cellH
	return image.Rect(x, y, x+c.cellW, y+c.cellH)
}

// Compose renders one composite. Cameras missing from frames get a dark
// placeholder labeled "<Camera> (N/A)".
func (c *Compositor) Compose(frames map[models.Camera]*image.RGBA) *image.RGBA {
	w, h := c.Size()
	out := image.NewRGBA(image.Rect(0, 0, w, h))

	for _, cam := range models.Cameras {
		cell := c.CellRect(cam)
		label := cam.Label()

		if frame, ok := frames[cam]; ok && frame != nil && !frame.Bounds().Empty() {
			c.scaler.Scale(out, cell, frame, frame.Bounds(), draw.Src, nil)
		} else {
			draw.Draw(out, cell, image.NewUniform(placeholder), image.Point{}, draw.Src)
			label += " (N/A)"
		}
		c.drawLabel(out, cell, label)
	}
	return out
}

// drawLabel blends a translucent band across the top of cell and writes text on it.
func (c *Compositor) drawLabel(dst *image.RGBA, cell image.Rectangle, text string) {
	band := image.Rect(cell.Min.X, cell.Min.Y, cell.Max.X, cell.Min.Y+labelBandHeight).Intersect(cell)
	draw.Draw(dst, band, image.NewUniform(labelBand), image.Point{}, draw.Over)

	ascent := c.face.Metrics().Ascent.Ceil()
	baseline := band.Min.Y + (band.Dy()+ascent)/2 - 1
	d := &font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(labelText),
		Face: c.face,
		Dot:  fixed.P(band.Min.X+labelPadding, baseline),
	}
	d.DrawString(text)
}

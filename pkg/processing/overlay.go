package processing

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"math"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"

	"github.com/menta2k/labelviz/pkg/types"
)

const (
	// captionOffset is the gap in pixels between a caption and its box
	captionOffset = 5
	captionPad    = 1
	titlePad      = 6
)

var regularFont *opentype.Font

func init() {
	f, err := opentype.Parse(goregular.TTF)
	if err == nil {
		regularFont = f
	}
}

// DefaultRenderOptions matches the classic look: red unfilled boxes with
// white captions on a translucent red background
func DefaultRenderOptions() types.RenderOptions {
	return types.RenderOptions{
		BoxColor:     color.NRGBA{255, 0, 0, 255},
		TextColor:    color.NRGBA{255, 255, 255, 255},
		CaptionColor: color.NRGBA{255, 0, 0, 255},
		CaptionAlpha: 0.7,
	}
}

// Caption formats the text drawn next to an instance box
func Caption(name string, confidence float64) string {
	return fmt.Sprintf("%s (%.2f%%)", name, confidence)
}

// Annotate draws every instance of every label onto a copy of img. Labels
// without instances draw nothing.
func (p *Processor) Annotate(img image.Image, labels []types.Label, opts types.RenderOptions) *image.NRGBA {
	canvas := imaging.Clone(img)
	w := canvas.Bounds().Dx()
	h := canvas.Bounds().Dy()

	stroke := opts.Stroke
	if stroke <= 0 {
		stroke = int(math.Max(1, 0.003*float64(minInt(w, h))))
	}
	face := newFace(fontSize(opts.FontSize, w, h))
	defer face.Close()

	for _, label := range labels {
		for _, inst := range label.Instances {
			x0, y0, x1, y1 := PixelRect(inst.Box, w, h)
			drawBox(canvas, x0, y0, x1, y1, opts.BoxColor, stroke)
			drawCaption(canvas, face, Caption(label.Name, inst.Confidence), x0, y0, opts)
		}
	}

	return canvas
}

// AddTitle returns a copy of img with a white banner above it holding title
func (p *Processor) AddTitle(img image.Image, title string, size float64) *image.NRGBA {
	b := img.Bounds()
	face := newFace(fontSize(size, b.Dx(), b.Dy()))
	defer face.Close()

	m := face.Metrics()
	bannerH := m.Ascent.Ceil() + m.Descent.Ceil() + 2*titlePad

	out := image.NewNRGBA(image.Rect(0, 0, b.Dx(), b.Dy()+bannerH))
	draw.Draw(out, out.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	draw.Draw(out, image.Rect(0, bannerH, b.Dx(), b.Dy()+bannerH), img, b.Min, draw.Src)

	textW := font.MeasureString(face, title).Ceil()
	x := maxInt(0, (b.Dx()-textW)/2)
	d := &font.Drawer{
		Dst:  out,
		Src:  image.NewUniform(color.Black),
		Face: face,
		Dot:  fixed.P(x, titlePad+m.Ascent.Ceil()),
	}
	d.DrawString(title)

	return out
}

func fontSize(size float64, w, h int) float64 {
	if size > 0 {
		return size
	}
	return math.Max(11, 0.02*float64(minInt(w, h)))
}

func newFace(size float64) font.Face {
	if regularFont != nil {
		face, err := opentype.NewFace(regularFont, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			return face
		}
	}
	return basicfont.Face7x13
}

// drawCaption places text on a filled background whose bottom edge sits
// captionOffset pixels above (x, y), kept inside the image
func drawCaption(img *image.NRGBA, face font.Face, text string, x, y int, opts types.RenderOptions) {
	m := face.Metrics()
	ascent, descent := m.Ascent.Ceil(), m.Descent.Ceil()
	textW := font.MeasureString(face, text).Ceil()
	boxW := textW + 2*captionPad
	boxH := ascent + descent + 2*captionPad

	bounds := img.Bounds()
	left := x
	if left+boxW > bounds.Dx() {
		left = bounds.Dx() - boxW
	}
	if left < 0 {
		left = 0
	}
	top := y - captionOffset - boxH
	if top < 0 {
		top = 0
	}

	bg := opts.CaptionColor
	bg.A = uint8(clamp(opts.CaptionAlpha, 0, 1)*255 + 0.5)
	rect := image.Rect(left, top, left+boxW, top+boxH).Intersect(bounds)
	draw.Draw(img, rect, image.NewUniform(bg), image.Point{}, draw.Over)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(opts.TextColor),
		Face: face,
		Dot:  fixed.P(left+captionPad, top+captionPad+ascent),
	}
	d.DrawString(text)
}

func drawBox(img *image.NRGBA, x0, y0, x1, y1 int, c color.NRGBA, stroke int) {
	for s := 0; s < stroke; s++ {
		drawHLine(img, y0+s, x0, x1, c)
		drawHLine(img, y1-1-s, x0, x1, c)
		drawVLine(img, x0+s, y0, y1, c)
		drawVLine(img, x1-1-s, y0, y1, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	if y < 0 || y >= img.Bounds().Dy() {
		return
	}
	if x0 > x1 {
		x0, x1 = x1, x0
	}
	if x1 <= 0 || x0 >= img.Bounds().Dx() {
		return
	}
	if x0 < 0 {
		x0 = 0
	}
	if x1 > img.Bounds().Dx() {
		x1 = img.Bounds().Dx()
	}
	i := y*img.Stride + x0*4
	for x := x0; x < x1; x++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += 4
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	if x < 0 || x >= img.Bounds().Dx() {
		return
	}
	if y0 > y1 {
		y0, y1 = y1, y0
	}
	if y1 <= 0 || y0 >= img.Bounds().Dy() {
		return
	}
	if y0 < 0 {
		y0 = 0
	}
	if y1 > img.Bounds().Dy() {
		y1 = img.Bounds().Dy()
	}
	i := y0*img.Stride + x*4
	for y := y0; y < y1; y++ {
		img.Pix[i+0] = c.R
		img.Pix[i+1] = c.G
		img.Pix[i+2] = c.B
		img.Pix[i+3] = c.A
		i += img.Stride
	}
}

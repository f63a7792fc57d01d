package compositor

import (
	"image"
	"image/color"
	"math"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

var (
	clickRingColor  = color.RGBA{R: 255, G: 200, B: 40, A: 255}
	cursorRingColor = color.RGBA{R: 255, G: 230, B: 80, A: 255}
	badgeFill       = color.RGBA{R: 20, G: 20, B: 24, A: 215}
	badgeText       = color.RGBA{R: 245, G: 245, B: 245, A: 255}
)

// drawRing strokes a softened circle outline centered at (cx, cy),
// blended at the given opacity in [0, 1].
func drawRing(dst *image.RGBA, cx, cy, radius, stroke float64, col color.RGBA, opacity float64) {
	if radius <= 0 || opacity <= 0 {
		return
	}
	half := stroke / 2
	x0 := int(math.Floor(cx - radius - half - 1))
	x1 := int(math.Ceil(cx + radius + half + 1))
	y0 := int(math.Floor(cy - radius - half - 1))
	y1 := int(math.Ceil(cy + radius + half + 1))
	bounds := dst.Rect
	for y := y0; y <= y1; y++ {
		if y < bounds.Min.Y || y >= bounds.Max.Y {
			continue
		}
		for x := x0; x <= x1; x++ {
			if x < bounds.Min.X || x >= bounds.Max.X {
				continue
			}
			dx := float64(x) + 0.5 - cx
			dy := float64(y) + 0.5 - cy
			dist := math.Abs(math.Hypot(dx, dy) - radius)
			if dist > half+1 {
				continue
			}
			cover := 1.0
			if dist > half {
				cover = half + 1 - dist
			}
			blendPixel(dst, x, y, col, opacity*cover)
		}
	}
}

// blendPixel writes col over the destination pixel with the given alpha.
// Out-of-bounds positions are dropped, not clamped.
func blendPixel(dst *image.RGBA, x, y int, col color.RGBA, alpha float64) {
	if alpha <= 0 {
		return
	}
	if x < dst.Rect.Min.X || x >= dst.Rect.Max.X || y < dst.Rect.Min.Y || y >= dst.Rect.Max.Y {
		return
	}
	if alpha > 1 {
		alpha = 1
	}
	off := dst.PixOffset(x, y)
	pix := dst.Pix[off : off+4 : off+4]
	pix[0] = mix(pix[0], col.R, alpha)
	pix[1] = mix(pix[1], col.G, alpha)
	pix[2] = mix(pix[2], col.B, alpha)
	pix[3] = 255
}

func mix(under, over uint8, alpha float64) uint8 {
	return uint8(float64(under)*(1-alpha) + float64(over)*alpha + 0.5)
}

// fillRect paints a solid rectangle with alpha blending.
func fillRect(dst *image.RGBA, rect image.Rectangle, col color.RGBA, alpha float64) {
	rect = rect.Intersect(dst.Rect)
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		for x := rect.Min.X; x < rect.Max.X; x++ {
			blendPixel(dst, x, y, col, alpha)
		}
	}
}

const (
	badgePadX  = 10
	badgePadY  = 6
	badgeInset = 16
)

// drawKeyBadge renders a single auto-sized badge listing the held keys,
// anchored bottom-left.
func drawKeyBadge(dst *image.RGBA, keys []string) {
	label := strings.Join(keys, ` + `)
	face := basicfont.Face7x13
	width := font.MeasureString(face, label).Ceil()
	height := face.Metrics().Height.Ceil()

	boxW := width + 2*badgePadX
	boxH := height + 2*badgePadY
	x0 := dst.Rect.Min.X + badgeInset
	y1 := dst.Rect.Max.Y - badgeInset
	box := image.Rect(x0, y1-boxH, x0+boxW, y1)
	fillRect(dst, box, badgeFill, float64(badgeFill.A)/255)

	drawer := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(badgeText),
		Face: face,
		Dot: fixed.Point26_6{
			X: fixed.I(box.Min.X + badgePadX),
			Y: fixed.I(box.Max.Y - badgePadY - face.Metrics().Descent.Ceil()),
		},
	}
	drawer.DrawString(label)
}

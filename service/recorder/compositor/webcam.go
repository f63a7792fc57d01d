package compositor

import (
	"image"
	"image/color"
	"math"

	xdraw "golang.org/x/image/draw"
)

// drawWebcam renders the webcam frame into a size x size offscreen
// buffer, applies the clip mask and optional blur, and blits it at the
// configured corner with fixed padding.
func (c *Compositor) drawWebcam(out *image.RGBA, frame *image.RGBA) {
	wc := c.webcam
	inset := image.NewRGBA(image.Rect(0, 0, wc.Size, wc.Size))
	xdraw.ApproxBiLinear.Scale(inset, inset.Rect, frame, centerSquare(frame.Rect), xdraw.Src, nil)
	if wc.Blur {
		boxBlur(inset, 2)
	}

	origin := c.webcamOrigin(out.Rect, wc)
	radius := float64(wc.Size) / 2
	for y := 0; y < wc.Size; y++ {
		for x := 0; x < wc.Size; x++ {
			alpha := 1.0
			if wc.Shape == ShapeCircle {
				dist := math.Hypot(float64(x)+0.5-radius, float64(y)+0.5-radius)
				if dist > radius {
					continue
				}
				if dist > radius-1 {
					alpha = radius - dist
				}
			}
			off := inset.PixOffset(x, y)
			pix := inset.Pix[off : off+4]
			blendPixel(out, origin.X+x, origin.Y+y, rgba(pix), alpha)
		}
	}
}

func (c *Compositor) webcamOrigin(bounds image.Rectangle, wc *WebcamConfig) image.Point {
	switch wc.Anchor {
	case AnchorTopLeft:
		return image.Pt(bounds.Min.X+webcamPadding, bounds.Min.Y+webcamPadding)
	case AnchorTopRight:
		return image.Pt(bounds.Max.X-webcamPadding-wc.Size, bounds.Min.Y+webcamPadding)
	case AnchorBottomLeft:
		return image.Pt(bounds.Min.X+webcamPadding, bounds.Max.Y-webcamPadding-wc.Size)
	default:
		return image.Pt(bounds.Max.X-webcamPadding-wc.Size, bounds.Max.Y-webcamPadding-wc.Size)
	}
}

// centerSquare crops the largest centered square out of a rectangle.
func centerSquare(r image.Rectangle) image.Rectangle {
	side := r.Dx()
	if r.Dy() < side {
		side = r.Dy()
	}
	cx := (r.Min.X + r.Max.X) / 2
	cy := (r.Min.Y + r.Max.Y) / 2
	return image.Rect(cx-side/2, cy-side/2, cx-side/2+side, cy-side/2+side)
}

// boxBlur runs a separable box blur over the buffer in place.
func boxBlur(img *image.RGBA, radius int) {
	if radius <= 0 {
		return
	}
	w := img.Rect.Dx()
	h := img.Rect.Dy()
	tmp := make([]uint8, len(img.Pix))
	copy(tmp, img.Pix)
	span := 2*radius + 1

	// horizontal pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b int
			for k := -radius; k <= radius; k++ {
				xx := clampIdx(x+k, w)
				off := y*img.Stride + xx*4
				r += int(tmp[off])
				g += int(tmp[off+1])
				b += int(tmp[off+2])
			}
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(r / span)
			img.Pix[off+1] = uint8(g / span)
			img.Pix[off+2] = uint8(b / span)
		}
	}
	copy(tmp, img.Pix)
	// vertical pass
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			var r, g, b int
			for k := -radius; k <= radius; k++ {
				yy := clampIdx(y+k, h)
				off := yy*img.Stride + x*4
				r += int(tmp[off])
				g += int(tmp[off+1])
				b += int(tmp[off+2])
			}
			off := y*img.Stride + x*4
			img.Pix[off] = uint8(r / span)
			img.Pix[off+1] = uint8(g / span)
			img.Pix[off+2] = uint8(b / span)
		}
	}
}

func clampIdx(v, max int) int {
	if v < 0 {
		return 0
	}
	if v >= max {
		return max - 1
	}
	return v
}

func rgba(pix []uint8) color.RGBA {
	return color.RGBA{R: pix[0], G: pix[1], B: pix[2], A: pix[3]}
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package raster

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"strconv"
	"strings"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	xvector "golang.org/x/image/vector"

	"inkboard/internal/domain"
	"inkboard/internal/selection"
	"inkboard/internal/textlayout"
	"inkboard/internal/transform"
	"inkboard/internal/vector"
)

// ImageSource resolves element src payloads. ok is false while a payload is
// not (yet) decodable; a placeholder is drawn instead.
type ImageSource interface {
	Image(src string) (image.Image, bool)
}

// Options controls rendering. Scale is pixels per page unit (default 1).
// A nil Background leaves the canvas transparent.
type Options struct {
	Scale      float64
	Background color.Color
	Images     ImageSource
}

func (o Options) scale() float64 {
	if o.Scale <= 0 || math.IsNaN(o.Scale) || math.IsInf(o.Scale, 0) {
		return 1
	}
	return o.Scale
}

// brush maps a brush type to an ink opacity and a width multiplier.
func brush(b domain.BrushType) (alpha, widthMul float64) {
	switch b {
	case domain.BrushPencil:
		return 0.75, 0.8
	case domain.BrushMarker:
		return 0.9, 1.6
	case domain.BrushHighlighter:
		return 0.35, 3
	default:
		return 1, 1
	}
}

var (
	placeholderFill = color.NRGBA{R: 0xe0, G: 0xe0, B: 0xe0, A: 0xff}
	frameLine       = color.NRGBA{R: 0x9e, G: 0x9e, B: 0x9e, A: 0xff}
)

type painter struct {
	dst    *image.RGBA
	scale  float64
	origin vector.Pt
	images ImageSource
}

func (p *painter) px(pt vector.Pt) (float32, float32) {
	return float32((pt.X - p.origin.X) * p.scale), float32((pt.Y - p.origin.Y) * p.scale)
}

func (p *painter) rect(r vector.Rect) image.Rectangle {
	x0, y0 := p.px(r.Min())
	x1, y1 := p.px(r.Max())
	return image.Rect(int(math.Floor(float64(x0))), int(math.Floor(float64(y0))), int(math.Ceil(float64(x1))), int(math.Ceil(float64(y1)))).Intersect(p.dst.Bounds())
}

// pixels is the pixel extent covering v page units at scale s, at least 1.
func pixels(v, s float64) int {
	return max(1, int(math.Ceil(v*s-1e-9)))
}

// RasterizePage renders a page of the given size in list order, back to front.
func RasterizePage(page domain.Page, size vector.Size, opts Options) *image.RGBA {
	s := opts.scale()
	w, h := pixels(size.W, s), pixels(size.H, s)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if opts.Background != nil {
		draw.Draw(dst, dst.Bounds(), image.NewUniform(opts.Background), image.Point{}, draw.Src)
	}
	p := &painter{dst: dst, scale: s, images: opts.Images}
	for _, e := range page.Elements {
		p.element(e)
	}
	return dst
}

// Snapshot renders only the selected elements, cropped to their bounds, on a
// transparent canvas and returns it as a merge raster.
func Snapshot(elements []domain.Element, selected selection.Set, opts Options) (transform.Raster, error) {
	b, ok := selection.Bounds(elements, selected, nil)
	if !ok {
		return transform.Raster{}, errors.New("nothing selected")
	}
	s := opts.scale()
	w, h := pixels(b.W, s), pixels(b.H, s)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	p := &painter{dst: dst, scale: s, origin: b.Origin(), images: opts.Images}
	for _, e := range elements {
		if selected.Has(e.ID) {
			p.element(e)
		}
	}
	data, err := EncodePNG(dst)
	if err != nil {
		return transform.Raster{}, err
	}
	return transform.Raster{
		Src:         base64.StdEncoding.EncodeToString(data),
		Bounds:      b,
		PixelWidth:  w,
		PixelHeight: h,
	}, nil
}

// ThumbnailSize is the pixel size Thumbnail produces for a page of size.
func ThumbnailSize(size vector.Size, maxWidth int) (image.Point, bool) {
	if maxWidth <= 0 || size.W <= 0 || size.H <= 0 {
		return image.Point{}, false
	}
	s := float64(maxWidth) / size.W
	return image.Pt(pixels(size.W, s), pixels(size.H, s)), true
}

// Thumbnail renders a page scaled to maxWidth pixels on white and encodes it
// as PNG.
func Thumbnail(page domain.Page, size vector.Size, maxWidth int, images ImageSource) ([]byte, image.Rectangle, error) {
	if _, ok := ThumbnailSize(size, maxWidth); !ok {
		return nil, image.Rectangle{}, fmt.Errorf("invalid thumbnail size %dpx for page %vx%v", maxWidth, size.W, size.H)
	}
	img := RasterizePage(page, size, Options{Scale: float64(maxWidth) / size.W, Background: color.White, Images: images})
	data, err := EncodePNG(img)
	return data, img.Bounds(), err
}

// EncodePNG encodes img with best-speed compression.
func EncodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestSpeed}
	if err := enc.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}

func (p *painter) element(e domain.Element) {
	switch c := e.Content.(type) {
	case domain.StrokeContent:
		p.stroke(e.Frame, c)
	case domain.TextContent:
		p.text(e.Frame, c)
	case domain.GraphContent:
		p.graph(e.Frame, c)
	case domain.ImageContent:
		p.picture(e.Frame, c.Src)
	case domain.BitmapInkContent:
		p.picture(e.Frame, c.Src)
	}
}

func (p *painter) stroke(frame vector.Rect, c domain.StrokeContent) {
	if len(c.Points) == 0 {
		return
	}
	alpha, mul := brush(c.BrushType)
	hw := math.Max(c.Width*mul*p.scale/2, 0.5)
	b := p.dst.Bounds()
	z := xvector.NewRasterizer(b.Dx(), b.Dy())
	z.DrawOp = draw.Over

	pts := make([][2]float64, len(c.Points))
	for i, pt := range c.Points {
		x, y := p.px(pt.Add(frame.Origin()))
		pts[i] = [2]float64{float64(x), float64(y)}
	}
	for i := 1; i < len(pts); i++ {
		segment(z, pts[i-1], pts[i], hw)
	}
	for _, pt := range pts {
		dot(z, pt, hw)
	}
	col := ParseColor(c.Color, color.NRGBA{A: 0xff})
	col.A = uint8(math.Round(float64(col.A) * alpha))
	z.Draw(p.dst, b, image.NewUniform(col), image.Point{})
}

// segment adds a quad of half-width hw around a->b. All quads and dots wind
// the same way so overlaps accumulate instead of cancelling.
func segment(z *xvector.Rasterizer, a, b [2]float64, hw float64) {
	dx, dy := b[0]-a[0], b[1]-a[1]
	l := math.Hypot(dx, dy)
	if l == 0 {
		return
	}
	nx, ny := -dy/l*hw, dx/l*hw
	z.MoveTo(float32(a[0]+nx), float32(a[1]+ny))
	z.LineTo(float32(b[0]+nx), float32(b[1]+ny))
	z.LineTo(float32(b[0]-nx), float32(b[1]-ny))
	z.LineTo(float32(a[0]-nx), float32(a[1]-ny))
	z.ClosePath()
}

// dot adds an octagon approximating a round join.
func dot(z *xvector.Rasterizer, c [2]float64, r float64) {
	const n = 8
	for k := 0; k < n; k++ {
		a := -2 * math.Pi * float64(k) / n
		x, y := float32(c[0]+r*math.Cos(a)), float32(c[1]+r*math.Sin(a))
		if k == 0 {
			z.MoveTo(x, y)
		} else {
			z.LineTo(x, y)
		}
	}
	z.ClosePath()
}

func (p *painter) text(frame vector.Rect, c domain.TextContent) {
	r := p.rect(frame)
	if r.Empty() {
		return
	}
	col := ParseColor(c.Color, color.NRGBA{A: 0xff})
	face := basicfont.Face7x13
	lineH := face.Metrics().Height.Ceil()
	lines := strings.Split(c.Text, "\n")
	// glyphs would be unreadable: draw one bar per line instead
	if c.FontSize*p.scale < float64(face.Height)/2 {
		barH := max(1, int(c.FontSize*p.scale*0.6))
		step := max(barH+1, int(c.FontSize*p.scale*1.2))
		for i, line := range lines {
			y := r.Min.Y + i*step
			if y+barH > r.Max.Y {
				break
			}
			w := min(r.Dx(), int(float64(len([]rune(line)))*c.FontSize*p.scale*0.5))
			bar := image.Rect(r.Min.X, y, r.Min.X+w, y+barH)
			faded := col
			faded.A /= 2
			draw.Draw(p.dst, bar, image.NewUniform(faded), image.Point{}, draw.Over)
		}
		return
	}
	sub, ok := p.dst.SubImage(r).(*image.RGBA)
	if !ok {
		return
	}
	d := &font.Drawer{Dst: sub, Src: image.NewUniform(col), Face: face}
	ascent := face.Metrics().Ascent.Ceil()
	for i, line := range textlayout.Wrap(face, c.Text, r.Dx()-2) {
		y := r.Min.Y + ascent + i*lineH
		if y > r.Max.Y {
			break
		}
		d.Dot = fixed.P(r.Min.X+1, y)
		d.DrawString(line)
	}
}

func (p *painter) graph(frame vector.Rect, c domain.GraphContent) {
	r := p.rect(frame)
	if r.Empty() {
		return
	}
	outline(p.dst, r, frameLine)
	ink := ParseColor(c.Color, color.NRGBA{R: 0x1e, G: 0x63, B: 0xd6, A: 0xff})
	// x axis at y=0 when in range, y axis at x=0 when in range
	if c.XMin < 0 && c.XMax > 0 && c.XMax > c.XMin {
		x := r.Min.X + int(float64(r.Dx())*(-c.XMin)/(c.XMax-c.XMin))
		draw.Draw(p.dst, image.Rect(x, r.Min.Y, x+1, r.Max.Y), image.NewUniform(frameLine), image.Point{}, draw.Over)
	}
	mid := r.Min.Y + r.Dy()/2
	draw.Draw(p.dst, image.Rect(r.Min.X, mid, r.Max.X, mid+1), image.NewUniform(frameLine), image.Point{}, draw.Over)
	if r.Dy() > 16 && r.Dx() > 16 {
		if sub, ok := p.dst.SubImage(r).(*image.RGBA); ok {
			d := &font.Drawer{Dst: sub, Src: image.NewUniform(ink), Face: basicfont.Face7x13, Dot: fixed.P(r.Min.X+3, r.Min.Y+13)}
			d.DrawString(c.Expression)
		}
	}
}

func (p *painter) picture(frame vector.Rect, src string) {
	r := p.rect(frame)
	if r.Empty() {
		return
	}
	if p.images != nil {
		if img, ok := p.images.Image(src); ok && img != nil {
			draw.ApproxBiLinear.Scale(p.dst, r, img, img.Bounds(), draw.Over, nil)
			return
		}
	}
	draw.Draw(p.dst, r, image.NewUniform(placeholderFill), image.Point{}, draw.Over)
	outline(p.dst, r, frameLine)
}

func outline(dst *image.RGBA, r image.Rectangle, c color.Color) {
	u := image.NewUniform(c)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Max.X, r.Min.Y+1), u, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Max.Y-1, r.Max.X, r.Max.Y), u, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Min.X, r.Min.Y, r.Min.X+1, r.Max.Y), u, image.Point{}, draw.Over)
	draw.Draw(dst, image.Rect(r.Max.X-1, r.Min.Y, r.Max.X, r.Max.Y), u, image.Point{}, draw.Over)
}

// ParseColor accepts #rgb, #rrggbb and #rrggbbaa.
func ParseColor(s string, fallback color.NRGBA) color.NRGBA {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 && len(s) != 8 {
		return fallback
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return fallback
	}
	if len(s) == 6 {
		return color.NRGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xff}
	}
	return color.NRGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}
}

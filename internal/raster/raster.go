// Package raster turns a whiteboard scene into an image the vision model can
// read.
package raster

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"

	"github.com/ziadkadry99/draw2ui/internal/whiteboard"
)

// DefaultMaxEdge bounds the longer side of the rendered image in pixels.
const DefaultMaxEdge = 1600

const padding = 20

// ErrNothingToDraw is returned for scenes without drawable elements.
var ErrNothingToDraw = errors.New("raster: scene has no drawable elements")

// Rasterizer renders a scene to PNG bytes.
type Rasterizer interface {
	Rasterize(ctx context.Context, scene whiteboard.Scene) ([]byte, error)
}

// WireframeRasterizer draws every element as an outline on the scene's
// background colour, which is all the model needs to read a layout sketch.
// Outlines are black on light backgrounds and white on dark ones.
type WireframeRasterizer struct {
	MaxEdge int
}

// NewWireframe returns a rasterizer bounded to maxEdge pixels. Non-positive
// values select DefaultMaxEdge.
func NewWireframe(maxEdge int) *WireframeRasterizer {
	if maxEdge <= 0 {
		maxEdge = DefaultMaxEdge
	}
	return &WireframeRasterizer{MaxEdge: maxEdge}
}

type element struct {
	Type      string       `json:"type"`
	X         float64      `json:"x"`
	Y         float64      `json:"y"`
	Width     float64      `json:"width"`
	Height    float64      `json:"height"`
	Angle     float64      `json:"angle"`
	Points    [][2]float64 `json:"points"`
	IsDeleted bool         `json:"isDeleted"`
}

// outline returns the element's unrotated reference points in scene
// coordinates.
func (e element) outline() [][2]float64 {
	if len(e.Points) > 0 {
		pts := make([][2]float64, len(e.Points))
		for i, p := range e.Points {
			pts[i] = [2]float64{e.X + p[0], e.Y + p[1]}
		}
		return pts
	}
	return [][2]float64{
		{e.X, e.Y}, {e.X + e.Width, e.Y}, {e.X + e.Width, e.Y + e.Height}, {e.X, e.Y + e.Height},
	}
}

// rotate turns (x, y) by the element's angle around its centre.
func (e element) rotate(x, y float64) (float64, float64) {
	if e.Angle == 0 {
		return x, y
	}
	cx, cy := e.X+e.Width/2, e.Y+e.Height/2
	sin, cos := math.Sincos(e.Angle)
	dx, dy := x-cx, y-cy
	return cx + dx*cos - dy*sin, cy + dx*sin + dy*cos
}

// bounds is the axis-aligned box of the rotated outline.
func (e element) bounds() (minX, minY, maxX, maxY float64) {
	minX, minY = math.Inf(1), math.Inf(1)
	maxX, maxY = math.Inf(-1), math.Inf(-1)
	for _, p := range e.outline() {
		x, y := e.rotate(p[0], p[1])
		minX, minY = math.Min(minX, x), math.Min(minY, y)
		maxX, maxY = math.Max(maxX, x), math.Max(maxY, y)
	}
	return
}

func (r *WireframeRasterizer) Rasterize(ctx context.Context, scene whiteboard.Scene) ([]byte, error) {
	var elements []element
	for _, raw := range scene.ActiveElements() {
		var e element
		if err := json.Unmarshal(raw, &e); err != nil {
			continue
		}
		elements = append(elements, e)
	}
	if len(elements) == 0 {
		return nil, ErrNothingToDraw
	}

	minX, minY := math.Inf(1), math.Inf(1)
	maxX, maxY := math.Inf(-1), math.Inf(-1)
	for _, e := range elements {
		x0, y0, x1, y1 := e.bounds()
		minX, minY = math.Min(minX, x0), math.Min(minY, y0)
		maxX, maxY = math.Max(maxX, x1), math.Max(maxY, y1)
	}

	w, h := math.Max(maxX-minX, 1), math.Max(maxY-minY, 1)
	scale := 1.0
	if longest := math.Max(w, h); longest > float64(r.MaxEdge-2*padding) {
		scale = float64(r.MaxEdge-2*padding) / longest
	}

	// The epsilon keeps float error in w*scale from adding a pixel past MaxEdge.
	c := newCanvas(int(math.Ceil(w*scale-1e-6))+2*padding, int(math.Ceil(h*scale-1e-6))+2*padding,
		Background(scene.AppState))
	project := func(x, y float64) (float64, float64) {
		return (x-minX)*scale + padding, (y-minY)*scale + padding
	}

	for _, e := range elements {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c.drawElement(e, project)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, c.img); err != nil {
		return nil, fmt.Errorf("encoding png: %w", err)
	}
	return buf.Bytes(), nil
}

var (
	white = colorful.Color{R: 1, G: 1, B: 1}
	black = colorful.Color{}
)

var hslPattern = regexp.MustCompile(`^hsla?\(\s*([\d.]+)(?:deg)?[\s,]+([\d.]+)%[\s,]+([\d.]+)%`)

// Background reads appState.viewBackgroundColor. Hex and hsl() values are
// understood; anything else, including "transparent", is white.
func Background(appState map[string]any) colorful.Color {
	raw, _ := appState["viewBackgroundColor"].(string)
	raw = strings.ToLower(strings.TrimSpace(raw))

	if strings.HasPrefix(raw, "#") {
		if c, err := colorful.Hex(raw); err == nil {
			return c
		}
		return white
	}
	if m := hslPattern.FindStringSubmatch(raw); m != nil {
		h, _ := strconv.ParseFloat(m[1], 64)
		sat, _ := strconv.ParseFloat(m[2], 64)
		l, _ := strconv.ParseFloat(m[3], 64)
		return colorful.Hsl(math.Mod(h, 360), sat/100, l/100).Clamped()
	}
	return white
}

type canvas struct {
	img *image.RGBA
	ink color.RGBA
}

func newCanvas(w, h int, bg colorful.Color) *canvas {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := toRGBA(bg)
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = fill.R, fill.G, fill.B, fill.A
	}

	ink := black
	if l, _, _ := bg.Lab(); l < 0.5 {
		ink = white
	}
	return &canvas{img: img, ink: toRGBA(ink)}
}

func toRGBA(c colorful.Color) color.RGBA {
	r, g, b := c.RGB255()
	return color.RGBA{r, g, b, 0xff}
}

func (c *canvas) drawElement(e element, project func(x, y float64) (float64, float64)) {
	cx, cy := e.X+e.Width/2, e.Y+e.Height/2
	rotate := func(x, y float64) (float64, float64) {
		return project(e.rotate(x, y))
	}

	switch e.Type {
	case "ellipse":
		const steps = 64
		rx, ry := e.Width/2, e.Height/2
		px, py := rotate(cx+rx, cy)
		for i := 1; i <= steps; i++ {
			t := 2 * math.Pi * float64(i) / steps
			x, y := rotate(cx+rx*math.Cos(t), cy+ry*math.Sin(t))
			c.line(px, py, x, y)
			px, py = x, y
		}
	case "diamond":
		c.polygon(rotate, [][2]float64{
			{cx, e.Y}, {e.X + e.Width, cy}, {cx, e.Y + e.Height}, {e.X, cy},
		}, true)
	case "line", "arrow", "freedraw":
		pts := e.outline()
		c.polygon(rotate, pts, false)
		if e.Type == "arrow" && len(pts) >= 2 {
			c.arrowHead(rotate, pts[len(pts)-2], pts[len(pts)-1])
		}
	default:
		// rectangle, text, image, frame and unknown types as boxes.
		c.polygon(rotate, e.outline(), true)
	}
}

func (c *canvas) polygon(tr func(x, y float64) (float64, float64), pts [][2]float64, closed bool) {
	for i := 1; i < len(pts); i++ {
		x0, y0 := tr(pts[i-1][0], pts[i-1][1])
		x1, y1 := tr(pts[i][0], pts[i][1])
		c.line(x0, y0, x1, y1)
	}
	if closed && len(pts) > 2 {
		x0, y0 := tr(pts[len(pts)-1][0], pts[len(pts)-1][1])
		x1, y1 := tr(pts[0][0], pts[0][1])
		c.line(x0, y0, x1, y1)
	}
}

func (c *canvas) arrowHead(tr func(x, y float64) (float64, float64), from, to [2]float64) {
	const size, spread = 12.0, math.Pi / 7
	angle := math.Atan2(to[1]-from[1], to[0]-from[0])
	for _, side := range []float64{-spread, spread} {
		a := angle + math.Pi + side
		x0, y0 := tr(to[0], to[1])
		x1, y1 := tr(to[0]+size*math.Cos(a), to[1]+size*math.Sin(a))
		c.line(x0, y0, x1, y1)
	}
}

// line draws a two-pixel-wide segment by stepping along its longer axis.
func (c *canvas) line(x0, y0, x1, y1 float64) {
	steps := int(math.Max(math.Abs(x1-x0), math.Abs(y1-y0))) + 1
	for i := 0; i <= steps; i++ {
		t := float64(i) / float64(steps)
		x := int(math.Round(x0 + (x1-x0)*t))
		y := int(math.Round(y0 + (y1-y0)*t))
		c.img.SetRGBA(x, y, c.ink)
		c.img.SetRGBA(x+1, y, c.ink)
		c.img.SetRGBA(x, y+1, c.ink)
	}
}

var dataURIPattern = regexp.MustCompile(`^data:image/(png|jpeg|jpg);base64,`)

// DataURI encodes PNG bytes as a data URI.
func DataURI(pngBytes []byte) string {
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(pngBytes)
}

// StripDataURI removes a png/jpeg data-URI prefix, returning the bare base64
// payload and its MIME type. Input without a prefix is returned unchanged
// and assumed to be PNG.
func StripDataURI(s string) (payload, mimeType string) {
	m := dataURIPattern.FindStringSubmatch(s)
	if m == nil {
		return s, "image/png"
	}
	sub := m[1]
	if sub == "jpg" {
		sub = "jpeg"
	}
	return s[len(m[0]):], "image/" + sub
}

// ParseDataURI decodes a png/jpeg data URI (or bare base64) into bytes.
func ParseDataURI(s string) ([]byte, string, error) {
	payload, mimeType := StripDataURI(s)
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decoding image data: %w", err)
	}
	return data, mimeType, nil
}

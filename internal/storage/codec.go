/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"inkboard/internal/domain"
	"inkboard/internal/vector"
	"inkboard/internal/version"
)

// Content payload keys, in legacy probe order.
var contentKeys = []domain.Kind{
	domain.KindText,
	domain.KindGraph,
	domain.KindImage,
	domain.KindStroke,
	domain.KindBitmapInk,
}

type wireDocument struct {
	Version          string     `json:"version"`
	SavedAt          string     `json:"saved_at"`
	Pages            []wirePage `json:"pages"`
	CurrentPageIndex int        `json:"current_page_index"`
}

type wirePage struct {
	ID       string        `json:"id"`
	Elements []wireElement `json:"elements"`
}

type wireElement struct {
	ID      string      `json:"id"`
	Kind    string      `json:"kind"`
	X       float64     `json:"x"`
	Y       float64     `json:"y"`
	Width   float64     `json:"width"`
	Height  float64     `json:"height"`
	ZIndex  int         `json:"z_index"`
	Content wireContent `json:"content"`
}

// wireContent carries an explicit "type" next to the single payload key.
type wireContent struct {
	Type      string      `json:"type"`
	Text      *wireText   `json:"text,omitempty"`
	Graph     *wireGraph  `json:"graph,omitempty"`
	Image     *wireImage  `json:"image,omitempty"`
	Stroke    *wireStroke `json:"stroke,omitempty"`
	BitmapInk *wireImage  `json:"bitmapInk,omitempty"`
}

type wireText struct {
	Text       string  `json:"text"`
	FontSize   float64 `json:"font_size"`
	FontFamily string  `json:"font_family,omitempty"`
	Color      string  `json:"color,omitempty"`
}

type wireGraph struct {
	Expression string   `json:"expression"`
	XMin       float64  `json:"x_min"`
	XMax       float64  `json:"x_max"`
	YMin       *float64 `json:"y_min,omitempty"`
	YMax       *float64 `json:"y_max,omitempty"`
	Color      string   `json:"color,omitempty"`
}

type wireImage struct {
	Src            string  `json:"src"`
	OriginalWidth  float64 `json:"original_width"`
	OriginalHeight float64 `json:"original_height"`
}

type wirePoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type wireStroke struct {
	Points    []wirePoint `json:"points"`
	Color     string      `json:"color"`
	Width     float64     `json:"width"`
	BrushType string      `json:"brush_type"`
}

// Encode serializes doc in the current format. Output is deterministic for a
// given document: fixed field order, two-space indent, trailing newline.
func Encode(doc domain.Document) ([]byte, error) {
	w := wireDocument{
		Version:          version.DocumentFormat,
		SavedAt:          doc.SavedAt.UTC().Format(time.RFC3339Nano),
		Pages:            make([]wirePage, 0, len(doc.Pages)),
		CurrentPageIndex: doc.PageIndex(),
	}
	for _, p := range doc.Pages {
		wp := wirePage{ID: p.ID, Elements: make([]wireElement, 0, len(p.Elements))}
		for _, e := range p.Elements {
			c, err := encodeContent(e.Content)
			if err != nil {
				return nil, fmt.Errorf("encode element %s: %w", e.ID, err)
			}
			wp.Elements = append(wp.Elements, wireElement{
				ID: e.ID, Kind: string(e.Content.Kind()),
				X: e.Frame.X, Y: e.Frame.Y, Width: e.Frame.W, Height: e.Frame.H,
				ZIndex: e.ZIndex, Content: c,
			})
		}
		w.Pages = append(w.Pages, wp)
	}
	data, err := json.MarshalIndent(w, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

func encodeContent(c domain.Content) (wireContent, error) {
	switch v := c.(type) {
	case domain.TextContent:
		return wireContent{Type: string(domain.KindText), Text: &wireText{Text: v.Text, FontSize: v.FontSize, FontFamily: v.FontFamily, Color: v.Color}}, nil
	case domain.GraphContent:
		return wireContent{Type: string(domain.KindGraph), Graph: &wireGraph{Expression: v.Expression, XMin: v.XMin, XMax: v.XMax, YMin: v.YMin, YMax: v.YMax, Color: v.Color}}, nil
	case domain.ImageContent:
		return wireContent{Type: string(domain.KindImage), Image: &wireImage{Src: v.Src, OriginalWidth: v.OriginalWidth, OriginalHeight: v.OriginalHeight}}, nil
	case domain.BitmapInkContent:
		return wireContent{Type: string(domain.KindBitmapInk), BitmapInk: &wireImage{Src: v.Src, OriginalWidth: v.OriginalWidth, OriginalHeight: v.OriginalHeight}}, nil
	case domain.StrokeContent:
		pts := make([]wirePoint, len(v.Points))
		for i, p := range v.Points {
			pts[i] = wirePoint{X: p.X, Y: p.Y}
		}
		return wireContent{Type: string(domain.KindStroke), Stroke: &wireStroke{Points: pts, Color: v.Color, Width: v.Width, BrushType: string(domain.ParseBrushType(string(v.BrushType)))}}, nil
	default:
		return wireContent{}, fmt.Errorf("unsupported content %T", c)
	}
}

// DecodeReport describes what Decode had to default, migrate or drop.
type DecodeReport struct {
	// Malformed is set when the bytes were not a JSON object at all; the
	// document is then a fresh single empty page.
	Malformed bool
	Err       error
	// FromVersion is the format version found in the bytes ("1" when absent).
	FromVersion string
	// LegacyElements is set when a top-level elements list was wrapped as a page.
	LegacyElements bool
	// Dropped holds ids (or "#page/index") of elements whose content could not
	// be resolved.
	Dropped        []string
	GeneratedIDs   int
	DefaultedBrush int
}

// Migrated reports whether the decoded document differs from its bytes in a
// way that should be persisted.
func (r DecodeReport) Migrated() bool {
	if r.Malformed {
		return false
	}
	return r.FromVersion != version.DocumentFormat || r.LegacyElements || r.GeneratedIDs > 0
}

type object map[string]json.RawMessage

// Decode parses current and legacy documents. It never fails: missing fields
// default and unreadable input yields a single empty page.
func Decode(data []byte) (domain.Document, DecodeReport) {
	var rep DecodeReport
	var top object
	if err := json.Unmarshal(data, &top); err != nil || top == nil {
		if err == nil {
			err = fmt.Errorf("document is not a JSON object")
		}
		rep.Malformed = true
		rep.Err = err
		rep.FromVersion = version.DocumentFormat
		return domain.NewDocument(version.DocumentFormat), rep
	}

	doc := domain.Document{Version: version.LegacyDocumentFormat}
	if v, ok := stringField(top, "version"); ok && v != "" {
		doc.Version = v
	} else if n, ok := numberField(top, "version"); ok {
		doc.Version = strconv.FormatFloat(n, 'f', -1, 64)
	}
	rep.FromVersion = doc.Version
	doc.SavedAt = decodeTime(top["saved_at"])

	var rawPages []json.RawMessage
	_ = json.Unmarshal(top["pages"], &rawPages)
	switch {
	case len(rawPages) > 0:
		for i, rp := range rawPages {
			var po object
			if err := json.Unmarshal(rp, &po); err != nil {
				po = object{}
			}
			p := domain.Page{Elements: []domain.Element{}}
			p.ID, _ = stringField(po, "id")
			if p.ID == "" {
				p.ID = domain.NewID()
				rep.GeneratedIDs++
			}
			p.Elements = decodeElements(po["elements"], fmt.Sprintf("#%d", i), &rep)
			doc.Pages = append(doc.Pages, p)
		}
	case len(top["elements"]) > 0 && !isNull(top["elements"]):
		p := domain.NewPage()
		p.Elements = decodeElements(top["elements"], "#0", &rep)
		doc.Pages = []domain.Page{p}
		rep.LegacyElements = true
	default:
		doc.Pages = []domain.Page{domain.NewPage()}
	}

	if n, ok := numberField(top, "current_page_index"); ok {
		doc.CurrentPageIndex = int(n)
	}
	doc.CurrentPageIndex = doc.PageIndex()
	return doc, rep
}

func decodeElements(raw json.RawMessage, pageRef string, rep *DecodeReport) []domain.Element {
	var items []json.RawMessage
	_ = json.Unmarshal(raw, &items)
	out := make([]domain.Element, 0, len(items))
	for i, item := range items {
		var eo object
		if err := json.Unmarshal(item, &eo); err != nil {
			rep.Dropped = append(rep.Dropped, fmt.Sprintf("%s/%d", pageRef, i))
			continue
		}
		e, ok := decodeElement(eo, rep)
		if !ok {
			ref := e.ID
			if ref == "" {
				ref = fmt.Sprintf("%s/%d", pageRef, i)
			}
			rep.Dropped = append(rep.Dropped, ref)
			continue
		}
		out = append(out, e)
	}
	return out
}

func decodeElement(eo object, rep *DecodeReport) (domain.Element, bool) {
	var e domain.Element
	e.ID, _ = stringField(eo, "id")
	declared, _ := stringField(eo, "kind")

	frame := eo
	if fo, ok := objectField(eo, "frame"); ok {
		frame = fo
	}
	e.Frame.X, _ = numberField(frame, "x")
	e.Frame.Y, _ = numberField(frame, "y")
	e.Frame.W, _ = numberField(frame, "width", "w")
	e.Frame.H, _ = numberField(frame, "height", "h")
	z, _ := numberField(eo, "z_index", "zIndex")
	e.ZIndex = int(z)

	c, ok := decodeContent(eo["content"], domain.Kind(declared), rep)
	if !ok {
		return e, false
	}
	e.Content = c
	e.Kind = c.Kind()
	if e.ID == "" {
		e.ID = domain.NewID()
		rep.GeneratedIDs++
	}
	return e, true
}

// decodeContent resolves the payload. Current bytes name it with "type";
// legacy bytes are probed by key in contentKeys order, then by the shape of a
// bare payload.
func decodeContent(raw json.RawMessage, declared domain.Kind, rep *DecodeReport) (domain.Content, bool) {
	co, ok := asObject(raw)
	if !ok {
		return nil, false
	}
	if t, ok := stringField(co, "type"); ok && domain.Kind(t).Valid() {
		if po, ok := objectField(co, t); ok {
			return decodePayload(domain.Kind(t), po, declared, rep)
		}
	}
	for _, k := range contentKeys {
		if po, ok := objectField(co, string(k)); ok {
			return decodePayload(k, po, declared, rep)
		}
	}
	switch {
	case has(co, "points"):
		return decodePayload(domain.KindStroke, co, declared, rep)
	case has(co, "expression"):
		return decodePayload(domain.KindGraph, co, declared, rep)
	case has(co, "text"):
		return decodePayload(domain.KindText, co, declared, rep)
	case has(co, "src"):
		return decodePayload(domain.KindImage, co, declared, rep)
	}
	return nil, false
}

func decodePayload(k domain.Kind, po object, declared domain.Kind, rep *DecodeReport) (domain.Content, bool) {
	// enum payloads with an unnamed associated value: {"_0": {...}}
	if inner, ok := objectField(po, "_0"); ok && len(po) == 1 {
		po = inner
	}
	switch k {
	case domain.KindText:
		text, ok := stringField(po, "text")
		if !ok {
			return nil, false
		}
		c := domain.TextContent{Text: text, FontSize: 16}
		if n, ok := numberField(po, "font_size", "fontSize"); ok {
			c.FontSize = n
		}
		c.FontFamily, _ = stringField(po, "font_family", "fontFamily")
		c.Color, _ = stringField(po, "color")
		return c, true
	case domain.KindGraph:
		expr, ok := stringField(po, "expression")
		if !ok {
			return nil, false
		}
		c := domain.GraphContent{Expression: expr, XMin: -10, XMax: 10}
		if n, ok := numberField(po, "x_min", "xMin"); ok {
			c.XMin = n
		}
		if n, ok := numberField(po, "x_max", "xMax"); ok {
			c.XMax = n
		}
		if n, ok := numberField(po, "y_min", "yMin"); ok {
			c.YMin = &n
		}
		if n, ok := numberField(po, "y_max", "yMax"); ok {
			c.YMax = &n
		}
		c.Color, _ = stringField(po, "color")
		return c, true
	case domain.KindImage, domain.KindBitmapInk:
		src, ok := stringField(po, "src", "data")
		if !ok {
			return nil, false
		}
		ow, _ := numberField(po, "original_width", "originalWidth")
		oh, _ := numberField(po, "original_height", "originalHeight")
		if k == domain.KindBitmapInk || declared == domain.KindBitmapInk {
			return domain.BitmapInkContent{Src: src, OriginalWidth: ow, OriginalHeight: oh}, true
		}
		return domain.ImageContent{Src: src, OriginalWidth: ow, OriginalHeight: oh}, true
	case domain.KindStroke:
		pts, ok := decodePoints(po["points"])
		if !ok {
			return nil, false
		}
		c := domain.StrokeContent{Points: pts, Color: "#000000", Width: 2}
		if s, ok := stringField(po, "color"); ok && s != "" {
			c.Color = s
		}
		if n, ok := numberField(po, "width", "line_width", "lineWidth"); ok {
			c.Width = n
		}
		bt, ok := stringField(po, "brush_type", "brushType")
		if !ok || bt == "" {
			rep.DefaultedBrush++
		}
		c.BrushType = domain.ParseBrushType(bt)
		return c, true
	}
	return nil, false
}

// decodePoints accepts [{"x":1,"y":2}] and [[1,2]].
func decodePoints(raw json.RawMessage) ([]vector.Pt, bool) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	pts := make([]vector.Pt, 0, len(items))
	for _, it := range items {
		var pair []float64
		if err := json.Unmarshal(it, &pair); err == nil {
			if len(pair) < 2 {
				return nil, false
			}
			pts = append(pts, vector.Pt{X: pair[0], Y: pair[1]})
			continue
		}
		var wp wirePoint
		if err := json.Unmarshal(it, &wp); err != nil {
			return nil, false
		}
		pts = append(pts, vector.Pt{X: wp.X, Y: wp.Y})
	}
	return pts, true
}

// decodeTime accepts RFC 3339 strings and unix seconds.
func decodeTime(raw json.RawMessage) time.Time {
	if len(raw) == 0 || isNull(raw) {
		return time.Time{}
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(s)); err == nil {
			return t
		}
		return time.Time{}
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		sec, frac := math.Modf(f)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC()
	}
	return time.Time{}
}

func isNull(raw json.RawMessage) bool { return bytes.Equal(bytes.TrimSpace(raw), []byte("null")) }

func has(o object, key string) bool {
	v, ok := o[key]
	return ok && !isNull(v)
}

func asObject(raw json.RawMessage) (object, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var o object
	if err := json.Unmarshal(raw, &o); err != nil || o == nil {
		return nil, false
	}
	return o, true
}

func objectField(o object, key string) (object, bool) {
	v, ok := o[key]
	if !ok {
		return nil, false
	}
	return asObject(v)
}

// stringField returns the first of keys holding a JSON string.
func stringField(o object, keys ...string) (string, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			return s, true
		}
	}
	return "", false
}

// numberField returns the first of keys holding a number or numeric string.
func numberField(o object, keys ...string) (float64, bool) {
	for _, k := range keys {
		v, ok := o[k]
		if !ok {
			continue
		}
		var f float64
		if err := json.Unmarshal(v, &f); err == nil {
			return f, true
		}
		var s string
		if err := json.Unmarshal(v, &s); err == nil {
			if f, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

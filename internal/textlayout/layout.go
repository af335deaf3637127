/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package textlayout breaks text block content into lines that fit a frame.
// Measurement goes through a font.Face so the renderer and tests agree on
// widths.
package textlayout

import (
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
)

// DefaultFace is the deterministic face used when none is given.
var DefaultFace font.Face = basicfont.Face7x13

// Measure returns the advance of s in whole pixels.
func Measure(face font.Face, s string) int {
	if face == nil {
		face = DefaultFace
	}
	return font.MeasureString(face, s).Ceil()
}

// Wrap splits text into lines no wider than maxWidth pixels. Hard newlines
// are kept; lines break at spaces, and a single word wider than maxWidth is
// split between runes. maxWidth <= 0 disables wrapping.
func Wrap(face font.Face, text string, maxWidth int) []string {
	if face == nil {
		face = DefaultFace
	}
	var out []string
	for _, para := range strings.Split(text, "\n") {
		if maxWidth <= 0 {
			out = append(out, para)
			continue
		}
		out = append(out, wrapParagraph(face, para, maxWidth)...)
	}
	return out
}

func wrapParagraph(face font.Face, para string, maxWidth int) []string {
	words := strings.Fields(para)
	if len(words) == 0 {
		return []string{""}
	}
	var lines []string
	cur := ""
	for _, w := range words {
		candidate := w
		if cur != "" {
			candidate = cur + " " + w
		}
		if Measure(face, candidate) <= maxWidth {
			cur = candidate
			continue
		}
		if cur != "" {
			lines = append(lines, cur)
			cur = ""
		}
		// word alone is too wide: hard break
		for Measure(face, w) > maxWidth {
			head, tail := splitAt(face, w, maxWidth)
			lines = append(lines, head)
			w = tail
		}
		cur = w
	}
	if cur != "" || len(lines) == 0 {
		lines = append(lines, cur)
	}
	return lines
}

// splitAt returns the longest rune prefix of w that fits, at least one rune.
func splitAt(face font.Face, w string, maxWidth int) (string, string) {
	rs := []rune(w)
	n := 1
	for n < len(rs) && Measure(face, string(rs[:n+1])) <= maxWidth {
		n++
	}
	return string(rs[:n]), string(rs[n:])
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package domain

import "slices"

// Clone returns a deep copy of e; slices and optional bounds are not shared.
func Clone(e Element) Element {
	switch c := e.Content.(type) {
	case StrokeContent:
		c.Points = slices.Clone(c.Points)
		e.Content = c
	case GraphContent:
		c.YMin = cloneFloat(c.YMin)
		c.YMax = cloneFloat(c.YMax)
		e.Content = c
	}
	return e
}

// CloneElements deep-copies a page's element list. A nil list stays nil.
func CloneElements(in []Element) []Element {
	if in == nil {
		return nil
	}
	out := make([]Element, len(in))
	for i, e := range in {
		out[i] = Clone(e)
	}
	return out
}

// ClonePage deep-copies p.
func ClonePage(p Page) Page {
	return Page{ID: p.ID, Elements: CloneElements(p.Elements)}
}

// CloneDocument deep-copies d.
func CloneDocument(d Document) Document {
	out := d
	out.Pages = make([]Page, len(d.Pages))
	for i, p := range d.Pages {
		out.Pages[i] = ClonePage(p)
	}
	return out
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

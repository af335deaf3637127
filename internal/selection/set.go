/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package selection

import (
	"maps"
	"slices"
)

// Set is a set of element ids. The zero value is usable for reads.
type Set map[string]struct{}

// NewSet returns a set holding ids.
func NewSet(ids ...string) Set {
	s := make(Set, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s Set) Add(id string)      { s[id] = struct{}{} }
func (s Set) Remove(id string)   { delete(s, id) }
func (s Set) Len() int           { return len(s) }
func (s Set) Has(id string) bool { _, ok := s[id]; return ok }

// IDs returns the members in sorted order.
func (s Set) IDs() []string { return slices.Sorted(maps.Keys(s)) }

// Clone returns an independent, non-nil copy.
func (s Set) Clone() Set {
	out := make(Set, len(s))
	maps.Copy(out, s)
	return out
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package flow turns a parsed call script into a navigation graph so callers can
// follow branches, lint targets, and render the call as Graphviz DOT.
package flow

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"

	"callscript/internal/script"
)

// Flow is the directed beat graph of one script.
type Flow struct {
	g     graph.Graph[int, int]
	order []int
	beats map[int]script.Beat
}

// Build creates the graph. Vertices are beat numbers. A beat links to every
// in-range branch target, and falls through to the following beat unless all
// of its branches jump elsewhere.
func Build(ps script.ParsedScript) (*Flow, error) {
	f := &Flow{
		g:     graph.New(graph.IntHash, graph.Directed()),
		beats: make(map[int]script.Beat, len(ps.Beats)),
	}
	for _, b := range ps.Beats {
		if err := f.g.AddVertex(b.Number, graph.VertexAttribute("label", vertexLabel(b))); err != nil {
			return nil, fmt.Errorf("add beat %d: %w", b.Number, err)
		}
		f.order = append(f.order, b.Number)
		f.beats[b.Number] = b
	}
	for i, b := range ps.Beats {
		if i+1 < len(ps.Beats) && fallsThrough(b) {
			if err := f.addEdge(b.Number, ps.Beats[i+1].Number, 0, "", graph.EdgeAttribute("style", "dashed")); err != nil {
				return nil, err
			}
		}
		for j, br := range b.Branches {
			if br.TargetBeat == nil {
				continue
			}
			t := *br.TargetBeat
			if t == b.Number {
				continue
			}
			if _, ok := f.beats[t]; !ok {
				continue
			}
			if err := f.addEdge(b.Number, t, j+1, edgeLabel(br.Condition)); err != nil {
				return nil, err
			}
		}
	}
	return f, nil
}

func (f *Flow) addEdge(from, to, weight int, label string, opts ...func(*graph.EdgeProperties)) error {
	opts = append(opts, graph.EdgeWeight(weight))
	if label != "" {
		opts = append(opts, graph.EdgeAttribute("label", label))
	}
	err := f.g.AddEdge(from, to, opts...)
	if errors.Is(err, graph.ErrEdgeAlreadyExists) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("link beat %d to %d: %w", from, to, err)
	}
	return nil
}

func fallsThrough(b script.Beat) bool {
	if len(b.Branches) == 0 {
		return true
	}
	for _, br := range b.Branches {
		if br.TargetBeat == nil {
			return true
		}
	}
	return false
}

// Beats returns the beat numbers in script order.
func (f *Flow) Beats() []int {
	return append([]int(nil), f.order...)
}

// Next returns where the call goes after beat current when branch fires
// (-1 means no branch). A branch target wins when it names a parsed beat;
// otherwise the call continues to the following beat. The second result is
// false once the call has run off the end or current is unknown.
func (f *Flow) Next(current, branch int) (int, bool) {
	b, ok := f.beats[current]
	if !ok {
		return 0, false
	}
	if branch >= 0 && branch < len(b.Branches) {
		if t := b.Branches[branch].TargetBeat; t != nil {
			if _, ok := f.beats[*t]; ok {
				return *t, true
			}
		}
	}
	for i, n := range f.order {
		if n == current && i+1 < len(f.order) {
			return f.order[i+1], true
		}
	}
	return 0, false
}

// Reachable reports every beat reachable from the first beat.
func (f *Flow) Reachable() (map[int]bool, error) {
	seen := map[int]bool{}
	if len(f.order) == 0 {
		return seen, nil
	}
	err := graph.BFS(f.g, f.order[0], func(n int) bool {
		seen[n] = true
		return false
	})
	return seen, err
}

// DOT writes the graph in Graphviz format.
func (f *Flow) DOT(w io.Writer) error {
	return draw.DOT(f.g, w, draw.GraphAttribute("rankdir", "LR"))
}

func vertexLabel(b script.Beat) string {
	if b.Title == "" {
		return strconv.Itoa(b.Number)
	}
	return fmt.Sprintf("%d. %s", b.Number, b.Title)
}

func edgeLabel(cond string) string {
	cond = strings.ReplaceAll(cond, `"`, `'`)
	r := []rune(cond)
	if len(r) > 32 {
		return string(r[:31]) + "…"
	}
	return cond
}

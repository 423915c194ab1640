/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

// Package script turns free-text call scripts into navigable beats.
//
// A call script is a list of numbered beats ("1. Attention Capture") whose bodies
// hold the lines the rep says plus conditional branches: what the prospect might
// say, the scripted reply and optionally the beat to jump to. Parsing is a
// best-effort heuristic over markdown-like conventions; it never fails, it only
// degrades to an unstructured result.
package script

// Limits of the numbered-beat convention.
const (
	MinBeats      = 3
	MaxBeatNumber = 8
	// FollowTheFlow is the say line used for beats without any spoken line.
	FollowTheFlow = "(Follow the flow)"
)

// Branch is one conditional deviation point within a beat.
// TargetBeat is nil when the branch does not redirect the call.
type Branch struct {
	Condition  string `json:"condition"`
	Response   string `json:"response"`
	TargetBeat *int   `json:"targetBeat"`
}

// Beat is one numbered step of the call flow.
type Beat struct {
	Number   int      `json:"number"`
	Title    string   `json:"title"`
	SayThis  string   `json:"sayThis"`
	Branches []Branch `json:"branches"`
}

// ParsedScript is the result of Parse. Beats are in order of first appearance.
type ParsedScript struct {
	Beats        []Beat `json:"beats"`
	IsStructured bool   `json:"isStructured"`
}

// Beat returns the beat with the given number.
func (p ParsedScript) Beat(n int) (Beat, bool) {
	for _, b := range p.Beats {
		if b.Number == n {
			return b, true
		}
	}
	return Beat{}, false
}

// Summary holds counts over a parsed script, used for logs and listings.
type Summary struct {
	Beats        int `json:"beats"`
	Branches     int `json:"branches"`
	Targeted     int `json:"targeted"`
	Placeholders int `json:"placeholders"`
}

// Summary counts beats, branches, branches with a jump target and beats that
// fell back to the placeholder say line.
func (p ParsedScript) Summary() Summary {
	s := Summary{Beats: len(p.Beats)}
	for _, b := range p.Beats {
		s.Branches += len(b.Branches)
		for _, br := range b.Branches {
			if br.TargetBeat != nil {
				s.Targeted++
			}
		}
		if b.SayThis == FollowTheFlow {
			s.Placeholders++
		}
	}
	return s
}

func intPtr(n int) *int { return &n }

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package flow

import (
	"fmt"
	"sort"

	"callscript/internal/script"
)

// IssueKind names a lint finding category.
type IssueKind string

const (
	DanglingTarget IssueKind = "dangling-target"
	SelfTarget     IssueKind = "self-target"
	Unreachable    IssueKind = "unreachable"
	Placeholder    IssueKind = "placeholder"
)

// Issue is a single lint finding. Branch is the zero-based branch index or -1.
type Issue struct {
	Kind    IssueKind `json:"kind"`
	Beat    int       `json:"beat"`
	Branch  int       `json:"branch"`
	Message string    `json:"message"`
}

// Report collects the lint findings for one parsed script.
type Report struct {
	Issues []Issue `json:"issues"`
}

// OK is true when there are no findings.
func (r Report) OK() bool { return len(r.Issues) == 0 }

// Count returns how many findings share the given kind.
func (r Report) Count(kind IssueKind) int {
	n := 0
	for _, is := range r.Issues {
		if is.Kind == kind {
			n++
		}
	}
	return n
}

// Lint checks branch targets, reachability and placeholder say lines.
// Findings are ordered by beat position, then by branch.
func Lint(ps script.ParsedScript) Report {
	r := Report{Issues: []Issue{}}
	if len(ps.Beats) == 0 {
		return r
	}
	known := make(map[int]bool, len(ps.Beats))
	for _, b := range ps.Beats {
		known[b.Number] = true
	}
	var reach map[int]bool
	if f, err := Build(ps); err == nil {
		reach, _ = f.Reachable()
	}
	for _, b := range ps.Beats {
		if b.SayThis == script.FollowTheFlow {
			r.Issues = append(r.Issues, Issue{Kind: Placeholder, Beat: b.Number, Branch: -1,
				Message: fmt.Sprintf("beat %d has no spoken line", b.Number)})
		}
		for i, br := range b.Branches {
			if br.TargetBeat == nil {
				continue
			}
			t := *br.TargetBeat
			switch {
			case t == b.Number:
				r.Issues = append(r.Issues, Issue{Kind: SelfTarget, Beat: b.Number, Branch: i,
					Message: fmt.Sprintf("beat %d branch %q loops back to itself", b.Number, br.Condition)})
			case !known[t]:
				r.Issues = append(r.Issues, Issue{Kind: DanglingTarget, Beat: b.Number, Branch: i,
					Message: fmt.Sprintf("beat %d branch %q targets missing beat %d", b.Number, br.Condition, t)})
			}
		}
		if reach != nil && !reach[b.Number] {
			r.Issues = append(r.Issues, Issue{Kind: Unreachable, Beat: b.Number, Branch: -1,
				Message: fmt.Sprintf("beat %d cannot be reached from the opening", b.Number)})
		}
	}
	pos := make(map[int]int, len(ps.Beats))
	for i, b := range ps.Beats {
		pos[b.Number] = i
	}
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if pos[a.Beat] != pos[b.Beat] {
			return pos[a.Beat] < pos[b.Beat]
		}
		return a.Branch < b.Branch
	})
	return r
}

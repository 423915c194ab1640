/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "strings"

// Parse segments a call script into beats with say lines and branches.
//
// Content that fails IsStructured, or that yields fewer than MinBeats accepted
// headings, comes back with no beats and IsStructured false. Headings numbered
// outside 1..MaxBeatNumber or repeating an earlier number do not start beats.
// Parse never fails; odd input only produces a less structured result.
func Parse(content string) ParsedScript {
	if !IsStructured(content) {
		return ParsedScript{Beats: []Beat{}}
	}
	all := FindHeadings(content)
	accepted := acceptHeadings(all)
	if len(accepted) < MinBeats {
		return ParsedScript{Beats: []Beat{}}
	}

	beats := make([]Beat, 0, len(accepted))
	for i, h := range accepted {
		b := parseBody(beatBody(content, all, accepted, i))
		b.Number = h.number
		b.Title = h.title
		beats = append(beats, b)
	}
	return ParsedScript{Beats: beats, IsStructured: len(beats) >= MinBeats}
}

// beatBuilder accumulates one beat body. pending holds the branch being built
// until the next branch line or the end of the body.
type beatBuilder struct {
	mode     Mode
	say      []string
	branches []Branch
	pending  *Branch
}

func parseBody(body string) Beat {
	bb := &beatBuilder{mode: CollectingSay, branches: []Branch{}}
	for _, raw := range strings.Split(body, "\n") {
		line := strings.TrimSpace(raw)
		if line == "" {
			continue
		}
		bb.feed(Classify(line, bb.mode))
	}
	bb.flush()

	say := strings.Join(bb.say, "\n")
	if say == "" {
		say = FollowTheFlow
	}
	return Beat{SayThis: say, Branches: bb.branches}
}

func (bb *beatBuilder) feed(l Line) {
	switch l.Kind {
	case KindBranchHeader:
		bb.mode = CollectingBranches
	case KindRichBranch, KindSimpleBranch:
		bb.mode = CollectingBranches
		bb.flush()
		if l.Condition != "" {
			bb.pending = &Branch{Condition: l.Condition, Response: l.Response, TargetBeat: l.Target}
		}
	case KindMoveOnly:
		if bb.pending != nil {
			bb.pending.TargetBeat = l.Target
		}
	case KindSpoken:
		bb.say = append(bb.say, l.Text)
	}
}

func (bb *beatBuilder) flush() {
	if bb.pending == nil {
		return
	}
	bb.branches = append(bb.branches, *bb.pending)
	bb.pending = nil
}

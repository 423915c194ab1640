/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

// Outcome is the tier a text falls into when parsed.
type Outcome int

const (
	// NotStructured: the text lacks the beat 1 and beat 4 anchors.
	NotStructured Outcome = iota
	// UnderSegmented: anchors present but fewer than MinBeats headings survive.
	UnderSegmented
	// Structured: at least MinBeats beats.
	Structured
)

func (o Outcome) String() string {
	switch o {
	case UnderSegmented:
		return "under-segmented"
	case Structured:
		return "structured"
	default:
		return "not-structured"
	}
}

// Assess reports which outcome Parse will produce for content. Both
// non-structured tiers carry the same caller contract: show the raw text.
func Assess(content string) Outcome {
	if !IsStructured(content) {
		return NotStructured
	}
	if len(acceptHeadings(FindHeadings(content))) < MinBeats {
		return UnderSegmented
	}
	return Structured
}

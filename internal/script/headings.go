/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import (
	"regexp"
	"strconv"
)

// reHeading matches a beat heading line: optional '#' markers (up to four), optional
// bold, optional "Beat ", the number, a separator run and the title. The title may
// not contain '#' or '*' so that adjacent structure is not swallowed.
var reHeading = regexp.MustCompile(`(?mi)^[ \t]*#{0,4}[ \t]*(?:\*\*)?[ \t]*(?:beat[ \t]+)?(\d+)[.):–—\- \t]+(?:\*\*)?[ \t]*([^#*\r\n]*[^#*\s])[ \t]*(?:\*\*)?[ \t]*\r?$`)

// reFinalSectionEnd marks where the last beat stops: a known trailing section
// heading or a horizontal rule.
var reFinalSectionEnd = regexp.MustCompile(`(?mi)^[ \t]*#{0,4}[ \t]*(?:\*\*)?[ \t]*(?:CONVERSATION WIN CONDITION|HOW TO THINK|SECTION 2|-{3,}[ \t]*\r?$)`)

// Heading is one heading-pattern match in the source text.
// Number is -1 when the numeric capture does not fit an int.
// Start and End are byte offsets of the whole match.
type Heading struct {
	Number int
	Title  string
	Start  int
	End    int
}

// FindHeadings returns every non-overlapping heading match in content, in order.
// No acceptance filtering is applied.
func FindHeadings(content string) []Heading {
	idx := reHeading.FindAllStringSubmatchIndex(content, -1)
	out := make([]Heading, 0, len(idx))
	for _, m := range idx {
		n, err := strconv.Atoi(content[m[2]:m[3]])
		if err != nil {
			n = -1
		}
		out = append(out, Heading{
			Number: n,
			Title:  content[m[4]:m[5]],
			Start:  m[0],
			End:    m[1],
		})
	}
	return out
}

// acceptedHeading is a heading that starts a beat.
type acceptedHeading struct {
	number    int
	title     string
	bodyStart int
}

// acceptHeadings keeps headings numbered 1..MaxBeatNumber, first occurrence wins.
func acceptHeadings(all []Heading) []acceptedHeading {
	seen := make(map[int]bool, MaxBeatNumber)
	var out []acceptedHeading
	for _, h := range all {
		if h.Number < 1 || h.Number > MaxBeatNumber || seen[h.Number] {
			continue
		}
		seen[h.Number] = true
		out = append(out, acceptedHeading{number: h.Number, title: cleanTitle(h.Title), bodyStart: h.End})
	}
	return out
}

// beatBody returns the raw body of accepted heading i. A body runs up to the first
// heading at or after its start carrying the next beat's number; the last body
// runs up to a closing section marker or the end of the text.
func beatBody(content string, all []Heading, accepted []acceptedHeading, i int) string {
	start := accepted[i].bodyStart
	end := len(content)
	if i+1 < len(accepted) {
		next := accepted[i+1].number
		for _, h := range all {
			if h.Start >= start && h.Number == next {
				end = h.Start
				break
			}
		}
	} else if loc := reFinalSectionEnd.FindStringIndex(content[start:]); loc != nil {
		end = start + loc[0]
	}
	if end < start {
		end = start
	}
	return content[start:end]
}

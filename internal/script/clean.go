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
	"strings"
)

var (
	reTrailingArrow = regexp.MustCompile(`\s*(?:→|->|=>)+\s*$`)
	reEdgeBold      = regexp.MustCompile(`^\*+|\*+$`)
	reEdgeQuotes    = regexp.MustCompile(`^["'“”‘’]+|["'“”‘’]+$`)
)

// Clean normalizes a captured condition, response or title. Trailing arrows,
// edge bold markers and edge quotes are stripped repeatedly until none remain,
// so nesting order does not matter.
func Clean(s string) string {
	s = strings.TrimSpace(s)
	for {
		prev := s
		s = strings.TrimSpace(reTrailingArrow.ReplaceAllString(s, ""))
		s = strings.TrimSpace(reEdgeBold.ReplaceAllString(s, ""))
		s = strings.TrimSpace(reEdgeQuotes.ReplaceAllString(s, ""))
		if s == prev {
			return s
		}
	}
}

// cleanTitle strips trailing colon and dash runs from a heading title.
func cleanTitle(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, ":-–— \t")
	return Clean(s)
}

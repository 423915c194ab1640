/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"strings"

	"callscript/internal/script"
)

// Document kinds.
const (
	KindTitle     = "title"
	KindSay       = "say"
	KindCondition = "condition"
	KindResponse  = "response"
)

// Document is one searchable fragment of a parsed script.
type Document struct {
	Beat int
	Kind string
	Text string
}

// Documents flattens a parsed script into search fragments in beat order.
// Placeholder say lines are skipped.
func Documents(ps script.ParsedScript) []Document {
	var out []Document
	for _, b := range ps.Beats {
		if b.Title != "" {
			out = append(out, Document{Beat: b.Number, Kind: KindTitle, Text: b.Title})
		}
		if b.SayThis != script.FollowTheFlow {
			for _, line := range strings.Split(b.SayThis, "\n") {
				if line = strings.TrimSpace(line); line != "" {
					out = append(out, Document{Beat: b.Number, Kind: KindSay, Text: line})
				}
			}
		}
		for _, br := range b.Branches {
			if br.Condition != "" {
				out = append(out, Document{Beat: b.Number, Kind: KindCondition, Text: br.Condition})
			}
			if br.Response != "" {
				out = append(out, Document{Beat: b.Number, Kind: KindResponse, Text: br.Response})
			}
		}
	}
	return out
}

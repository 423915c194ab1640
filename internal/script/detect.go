/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "regexp"

// Anchors for the structure check: a beat heading numbered 1 and one numbered 4,
// optionally decorated with up to four '#', bold markers and the word "Beat".
var (
	reAnchorOne  = regexp.MustCompile(`(?mi)^[ \t]*#{0,4}[ \t]*(?:\*\*)?[ \t]*(?:beat[ \t]+)?1\.`)
	reAnchorFour = regexp.MustCompile(`(?mi)^[ \t]*#{0,4}[ \t]*(?:\*\*)?[ \t]*(?:beat[ \t]+)?4\.`)
)

// IsStructured reports whether content follows the numbered-beat convention
// closely enough to be segmented. Both a "1." and a "4." heading are required,
// which keeps short unrelated numbered lists out.
func IsStructured(content string) bool {
	return reAnchorOne.MatchString(content) && reAnchorFour.MatchString(content)
}

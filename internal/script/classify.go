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
	"strings"
)

// LineKind tells how a body line of a beat was classified.
type LineKind int

const (
	KindUnmatched LineKind = iota
	KindHeading
	KindBranchHeader
	KindRichBranch
	KindSimpleBranch
	KindMoveOnly
	KindMeta
	KindSpoken
)

func (k LineKind) String() string {
	switch k {
	case KindHeading:
		return "heading"
	case KindBranchHeader:
		return "branch_header"
	case KindRichBranch:
		return "rich_branch"
	case KindSimpleBranch:
		return "simple_branch"
	case KindMoveOnly:
		return "move_only"
	case KindMeta:
		return "meta"
	case KindSpoken:
		return "spoken"
	default:
		return "unmatched"
	}
}

// Mode is the state of the per-beat line scan.
type Mode int

const (
	CollectingSay Mode = iota
	CollectingBranches
)

// Line is a classified body line.
// Text is set for KindSpoken; Condition, Response and Target for branch kinds;
// Target alone for KindMoveOnly.
type Line struct {
	Kind      LineKind
	Text      string
	Condition string
	Response  string
	Target    *int
}

const (
	bullet = `(?:[-•–][ \t]*|\*[ \t]+)?`
	arrow  = `(?:→|->|=>)`
	verbs  = `(?:says?|responds?|asks?|interrupts?|push(?:es)? back|resists?)`
)

var patterns = struct {
	branchKeyword *regexp.Regexp
	rich          *regexp.Regexp
	simple        *regexp.Regexp
	ifThey        *regexp.Regexp
	embedded      *regexp.Regexp
	moveOnly      *regexp.Regexp
	meta          *regexp.Regexp
	repLabel      *regexp.Regexp
	headingLike   *regexp.Regexp
	annotation    *regexp.Regexp
}{
	branchKeyword: regexp.MustCompile(`(?i)^(?:guardrails|branches|if they say|conditional|branch)\b`),
	rich: regexp.MustCompile(`(?i)^` + bullet +
		`(?:if they ` + verbs + `[ \t]*:?[ \t]*)?` +
		`(.+?)\s*` + arrow + `\s*(?:\*\*)?(?:rep(?:\*\*)?\s*:(?:\*\*)?\s*)?` +
		`(.+?)(?:\s*` + arrow + `\s*(?:move to\s+)?beat\s*(\d+).*)?$`),
	simple:      regexp.MustCompile(`(?i)^` + bullet + `(?:if they(?:\s+` + verbs + `)?\s+)?(.+?):\s*(.+)$`),
	ifThey:      regexp.MustCompile(`(?i)^` + bullet + `if they\b`),
	embedded:    regexp.MustCompile(`(?i)(?:` + arrow + `\s*)?(?:move to\s+)?\bbeat\s*(\d+)`),
	moveOnly:    regexp.MustCompile(`(?i)^` + bullet + `(?:` + arrow + `\s*)?(?:move to\s+)?beat\s*(\d+)[ \t]*[.!]?$`),
	meta:        regexp.MustCompile(`(?i)^(?:#{1,6}[ \t]*)?(?:\*\*)?[ \t]*(?:say this|what to say|primary line|rep says)(?:[ \t]*\([^)]*\))?[ \t]*(?:\*\*)?[ \t]*:?[ \t]*(?:\*\*)?$|^[-=*]+$`),
	repLabel:    regexp.MustCompile(`(?i)^(?:\*\*)?rep(?:\*\*)?\s*:\s*(?:\*\*)?`),
	headingLike: regexp.MustCompile(`^#{1,6}(?:\s|$)`),
	annotation:  regexp.MustCompile(`(?i)^(?:\*\*)?[ \t]*(?:example|note|pattern)s?[ \t]*(?:\*\*)?[ \t]*:`),
}

// Classify assigns a trimmed, non-blank body line to a kind. Rules are tried in
// order: branch section header, move-to-beat continuation, rich branch, simple
// branch, meta marker, then spoken line (say section only). Outside a branch
// section a simple branch needs an explicit "If they" prefix.
// Bare "Move to Beat N" lines never count as branches.
func Classify(line string, mode Mode) Line {
	line = strings.TrimSpace(line)
	if line == "" {
		return Line{Kind: KindUnmatched}
	}
	if isBranchHeader(line) {
		return Line{Kind: KindBranchHeader}
	}
	if m := patterns.moveOnly.FindStringSubmatch(line); m != nil {
		return Line{Kind: KindMoveOnly, Target: parseTarget(m[1])}
	}
	if m := patterns.rich.FindStringSubmatch(line); m != nil {
		if t := patterns.moveOnly.FindStringSubmatch(strings.TrimSpace(m[2])); t != nil {
			// "cond: reply → Beat N": the arrow only introduces the target.
			if s := patterns.simple.FindStringSubmatch(strings.TrimSpace(m[1])); s != nil {
				return Line{Kind: KindRichBranch, Condition: Clean(s[1]), Response: Clean(s[2]), Target: parseTarget(t[1])}
			}
		}
		return Line{Kind: KindRichBranch, Condition: Clean(m[1]), Response: Clean(m[2]), Target: parseTarget(m[3])}
	}
	if mode == CollectingBranches || patterns.ifThey.MatchString(line) {
		if m := patterns.simple.FindStringSubmatch(line); m != nil {
			resp, target := splitEmbeddedTarget(m[2])
			return Line{Kind: KindSimpleBranch, Condition: Clean(m[1]), Response: Clean(resp), Target: target}
		}
	}
	if patterns.meta.MatchString(line) {
		return Line{Kind: KindMeta}
	}
	if mode == CollectingBranches {
		return Line{Kind: KindUnmatched}
	}
	text := patterns.repLabel.ReplaceAllString(line, "")
	text = strings.TrimSpace(reEdgeBold.ReplaceAllString(strings.TrimSpace(text), ""))
	switch {
	case text == "":
		return Line{Kind: KindUnmatched}
	case patterns.headingLike.MatchString(text), patterns.annotation.MatchString(text):
		return Line{Kind: KindHeading}
	}
	return Line{Kind: KindSpoken, Text: text}
}

// isBranchHeader matches section labels such as "GUARDRAILS:", "## Branches" or
// "**IF THEY SAY**". Undecorated prose starting with a keyword is not a header.
func isBranchHeader(line string) bool {
	if strings.ContainsAny(line, `"“”→`) || strings.Contains(line, "->") {
		return false
	}
	hashed := strings.HasPrefix(line, "#")
	core := strings.TrimLeft(line, "# \t")
	bold := strings.HasPrefix(core, "**")
	core = strings.TrimSpace(strings.Trim(core, "*"))
	colon := strings.HasSuffix(core, ":")
	core = strings.TrimSpace(strings.TrimRight(core, ": \t*"))
	if core == "" || len(core) > 60 || !patterns.branchKeyword.MatchString(core) {
		return false
	}
	return hashed || bold || colon || core == strings.ToUpper(core)
}

// splitEmbeddedTarget separates a trailing "→ Move to Beat N" from a simple
// branch response.
func splitEmbeddedTarget(resp string) (string, *int) {
	loc := patterns.embedded.FindStringSubmatchIndex(resp)
	if loc == nil {
		return resp, nil
	}
	return resp[:loc[0]], parseTarget(resp[loc[2]:loc[3]])
}

func parseTarget(s string) *int {
	if s == "" {
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return nil
	}
	return intPtr(n)
}

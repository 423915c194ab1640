/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package script

import "testing"

func TestClassifyTable(t *testing.T) {
	three, four := 3, 4
	cases := []struct {
		name string
		line string
		mode Mode
		want Line
	}{
		{"header caps", "GUARDRAILS", CollectingSay, Line{Kind: KindBranchHeader}},
		{"header markdown", "### Branches", CollectingSay, Line{Kind: KindBranchHeader}},
		{"header bold colon", "**If they say:**", CollectingSay, Line{Kind: KindBranchHeader}},
		{"header conditional", "Conditional:", CollectingSay, Line{Kind: KindBranchHeader}},
		{"keyword prose is spoken", "Branch managers love this part of the demo.", CollectingSay, Line{Kind: KindSpoken, Text: "Branch managers love this part of the demo."}},
		{"rich full", `- If they push back "Send me an email" → **Rep:** "Happy to, what should it cover?" → Move to Beat 4`, CollectingSay,
			Line{Kind: KindRichBranch, Condition: "Send me an email", Response: "Happy to, what should it cover?", Target: &four}},
		{"rich ascii arrow", `* "Call me later" -> "When works best?"`, CollectingSay,
			Line{Kind: KindRichBranch, Condition: "Call me later", Response: "When works best?"}},
		{"rich colon then target", "- Too busy: One minute, promise. → Beat 3", CollectingSay,
			Line{Kind: KindRichBranch, Condition: "Too busy", Response: "One minute, promise.", Target: &three}},
		{"bare colon line spoken outside branches", "Price: We are month to month.", CollectingSay, Line{Kind: KindSpoken, Text: "Price: We are month to month."}},
		{"if-they colon line outside branches", "- If they say busy: No problem, when is better?", CollectingSay, Line{Kind: KindSimpleBranch, Condition: "busy", Response: "No problem, when is better?"}},
		{"simple in branches", "- If they Price: We are month to month.", CollectingBranches,
			Line{Kind: KindSimpleBranch, Condition: "Price", Response: "We are month to month."}},
		{"simple embedded target", "Gatekeeper: Ask for the owner by name → Move to Beat 3", CollectingBranches,
			Line{Kind: KindRichBranch, Condition: "Gatekeeper", Response: "Ask for the owner by name", Target: &three}},
		{"simple bare target", "Gatekeeper: Ask for the owner. Beat 3", CollectingBranches,
			Line{Kind: KindSimpleBranch, Condition: "Gatekeeper", Response: "Ask for the owner.", Target: &three}},
		{"move only", "→ Move to Beat 4", CollectingBranches, Line{Kind: KindMoveOnly, Target: &four}},
		{"move only bullet", "- Beat 3.", CollectingSay, Line{Kind: KindMoveOnly, Target: &three}},
		{"meta label", "WHAT TO SAY:", CollectingSay, Line{Kind: KindMeta}},
		{"meta label in branches", "**PRIMARY LINE**", CollectingBranches, Line{Kind: KindMeta}},
		{"meta rule", "***", CollectingSay, Line{Kind: KindMeta}},
		{"rep label stripped", "**Rep:** Quick question for you.", CollectingSay, Line{Kind: KindSpoken, Text: "Quick question for you."}},
		{"heading-like dropped", "## Tips", CollectingSay, Line{Kind: KindHeading}},
		{"annotation dropped", "Pattern: mirror their wording", CollectingSay, Line{Kind: KindHeading}},
		{"prose in branches", "Stay calm and listen.", CollectingBranches, Line{Kind: KindUnmatched}},
		{"blank", "   ", CollectingSay, Line{Kind: KindUnmatched}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Classify(tc.line, tc.mode)
			if got.Kind != tc.want.Kind {
				t.Fatalf("kind = %s, want %s (%+v)", got.Kind, tc.want.Kind, got)
			}
			if got.Text != tc.want.Text || got.Condition != tc.want.Condition || got.Response != tc.want.Response {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
			switch {
			case got.Target == nil && tc.want.Target == nil:
			case got.Target == nil || tc.want.Target == nil:
				t.Fatalf("target = %v, want %v", got.Target, tc.want.Target)
			case *got.Target != *tc.want.Target:
				t.Fatalf("target = %d, want %d", *got.Target, *tc.want.Target)
			}
		})
	}
}

func TestParseTargetRejectsZeroAndOverflow(t *testing.T) {
	if parseTarget("0") != nil {
		t.Fatalf("expected nil target for 0")
	}
	if parseTarget("99999999999999999999999") != nil {
		t.Fatalf("expected nil target on overflow")
	}
	if p := parseTarget("7"); p == nil || *p != 7 {
		t.Fatalf("expected 7, got %v", p)
	}
}

func TestLineKindString(t *testing.T) {
	if KindRichBranch.String() != "rich_branch" || LineKind(99).String() != "unmatched" {
		t.Fatalf("unexpected kind names")
	}
}

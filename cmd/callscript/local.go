/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"callscript/internal/export"
	"callscript/internal/flow"
	"callscript/internal/script"
	"callscript/internal/telemetry"
)

// hasFlag removes name from args and reports whether it was present.
func hasFlag(args []string, name string) ([]string, bool) {
	out := args[:0:0]
	found := false
	for _, a := range args {
		if a == name {
			found = true
			continue
		}
		out = append(out, a)
	}
	return out, found
}

func (a *app) check(args []string) error {
	if len(args) < 1 {
		return usageError{"check requires <file|->"}
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}
	o := script.Assess(text)
	telemetry.Event(telemetry.ScriptChecked, map[string]any{"outcome": o.String()})
	fmt.Println("Outcome:", o)
	if o == script.Structured {
		s := script.Parse(text).Summary()
		fmt.Printf("Beats: %d  Branches: %d  Targeted: %d  Placeholders: %d\n", s.Beats, s.Branches, s.Targeted, s.Placeholders)
		return nil
	}
	fmt.Println("The text will be shown as-is.")
	return exitError{1}
}

func (a *app) parse(args []string) error {
	args, asJSON := hasFlag(args, "--json")
	if len(args) < 1 {
		return usageError{"parse requires <file|->"}
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}
	return emit(os.Stdout, script.Parse(text), text, asJSON)
}

// emit prints a parsed script as JSON or as a readable beat list. Unstructured
// scripts print their raw text in readable mode.
func emit(w io.Writer, ps script.ParsedScript, raw string, asJSON bool) error {
	if asJSON {
		b, err := export.JSON(ps)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(b))
		return err
	}
	if !ps.IsStructured {
		_, err := fmt.Fprint(w, raw)
		return err
	}
	for _, b := range ps.Beats {
		fmt.Fprintf(w, "%d. %s\n", b.Number, b.Title)
		fmt.Fprintf(w, "   Say: %s\n", b.SayThis)
		for _, br := range b.Branches {
			line := fmt.Sprintf("   If they say %q: %s", br.Condition, br.Response)
			if br.TargetBeat != nil {
				line += fmt.Sprintf(" -> Beat %d", *br.TargetBeat)
			}
			fmt.Fprintln(w, line)
		}
	}
	return nil
}

func (a *app) lint(args []string) error {
	if len(args) < 1 {
		return usageError{"lint requires <file|->"}
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}
	ps := script.Parse(text)
	if !ps.IsStructured {
		fmt.Println("not structured; nothing to lint")
		return exitError{1}
	}
	rep := flow.Lint(ps)
	for _, is := range rep.Issues {
		fmt.Printf("beat %d: %s: %s\n", is.Beat, is.Kind, is.Message)
	}
	if rep.OK() {
		fmt.Println("ok")
	}
	// Dangling jumps break navigation; the other findings are advisory.
	if rep.Count(flow.DanglingTarget) > 0 {
		return exitError{1}
	}
	return nil
}

func (a *app) dot(args []string) error {
	if len(args) < 1 {
		return usageError{"dot requires <file|->"}
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}
	f, err := flow.Build(script.Parse(text))
	if err != nil {
		return err
	}
	return f.DOT(os.Stdout)
}

func (a *app) pdf(args []string) error {
	if len(args) < 2 {
		return usageError{"pdf requires <file|-> and <out.pdf>"}
	}
	text, err := readInput(args[0])
	if err != nil {
		return err
	}
	title := "Call script"
	if args[0] != "-" {
		title = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	}
	if len(args) > 2 {
		title = args[2]
	}
	out, err := os.Create(args[1])
	if err != nil {
		return err
	}
	if err := export.CallSheetPDF(script.Parse(text), title, out, export.PDFOptions{}); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	fmt.Println("Wrote", args[1])
	return nil
}

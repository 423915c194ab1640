/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"callscript/internal/storage"
	"callscript/internal/telemetry"
)

func (a *app) save(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return usageError{"save requires <name> and <file|->"}
	}
	text, err := readInput(args[1])
	if err != nil {
		return err
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	rec, err := lib.SaveScript(ctx, args[0], text)
	if err != nil {
		return err
	}
	telemetry.Event(telemetry.ScriptSaved, map[string]any{"structured": rec.Structured, "beats": rec.BeatCount})
	a.log.Info("saved script", slog.String("name", rec.Name), slog.Bool("structured", rec.Structured), slog.Int("beats", rec.BeatCount))
	fmt.Printf("Saved %q (%d beats, structured=%t)\n", rec.Name, rec.BeatCount, rec.Structured)
	return nil
}

func (a *app) show(ctx context.Context, args []string) error {
	args, asJSON := hasFlag(args, "--json")
	if len(args) < 1 {
		return usageError{"show requires <name>"}
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	rec, err := lib.GetScript(ctx, args[0])
	if err != nil {
		return notFound(err, args[0])
	}
	return emit(os.Stdout, rec.Parsed(), rec.Text, asJSON)
}

func (a *app) list(ctx context.Context) error {
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	recs, err := lib.ListScripts(ctx)
	if err != nil {
		return err
	}
	if len(recs) == 0 {
		fmt.Println("No scripts in", lib.Root)
		return nil
	}
	for _, r := range recs {
		state := "raw"
		if r.Structured {
			state = fmt.Sprintf("%d beats", r.BeatCount)
		}
		fmt.Printf("%-32s %-10s %s\n", r.Name, state, r.UpdatedAt.Local().Format(time.DateTime))
	}
	return nil
}

func (a *app) remove(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError{"delete requires <name>"}
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	if err := lib.DeleteScript(ctx, args[0]); err != nil {
		return notFound(err, args[0])
	}
	fmt.Printf("Deleted %q\n", args[0])
	return nil
}

func (a *app) history(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError{"history requires <name>"}
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	revs, err := lib.Revisions(ctx, args[0], 0)
	if err != nil {
		return notFound(err, args[0])
	}
	for _, r := range revs {
		fmt.Printf("#%-5d %s  %d bytes\n", r.ID, r.TS.Local().Format(time.DateTime), len(r.Text))
	}
	return nil
}

func (a *app) reindex(ctx context.Context) error {
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	if err := lib.Reindex(ctx); err != nil {
		return err
	}
	fmt.Println("Reindexed", lib.Root)
	return nil
}

// kindList collects repeated -kind flags.
type kindList []string

func (k *kindList) String() string { return strings.Join(*k, ",") }

func (k *kindList) Set(v string) error {
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			*k = append(*k, p)
		}
	}
	return nil
}

// parseSearchArgs reads search flags shared by the local and remote search commands.
func parseSearchArgs(name string, args []string) (storage.SearchQuery, bool, error) {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	var q storage.SearchQuery
	var kinds kindList
	fs.StringVar(&q.Script, "script", "", "limit to one script")
	fs.IntVar(&q.Beat, "beat", 0, "limit to one beat number")
	fs.Var(&kinds, "kind", "document kind: title, say, condition, response (repeatable)")
	fs.IntVar(&q.Limit, "limit", 20, "maximum results")
	fs.IntVar(&q.Offset, "offset", 0, "results to skip")
	asJSON := fs.Bool("json", false, "print JSON")
	if err := fs.Parse(args); err != nil {
		return q, false, usageError{err.Error()}
	}
	q.Kinds = kinds
	q.Text = strings.Join(fs.Args(), " ")
	return q, *asJSON, nil
}

func (a *app) search(ctx context.Context, args []string) error {
	q, asJSON, err := parseSearchArgs("search", args)
	if err != nil {
		return err
	}
	lib, err := a.openLibrary()
	if err != nil {
		return err
	}
	defer func() { _ = lib.Close() }()
	res, err := lib.Search(ctx, q)
	if err != nil {
		return err
	}
	return printResults(res, asJSON)
}

func printResults(res []storage.SearchResult, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(res)
	}
	for _, r := range res {
		text := r.Snippet
		if text == "" {
			text = r.Text
		}
		fmt.Printf("%s  beat %d  %-9s %s\n", r.Script, r.Beat, r.Kind, text)
	}
	if len(res) == 0 {
		fmt.Println("No matches.")
	}
	return nil
}

func notFound(err error, name string) error {
	if errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("no script named %q", name)
	}
	return err
}

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
	"errors"
	"fmt"
	"log/slog"
	"os"

	"callscript/internal/backend"
	"callscript/internal/config"
	"callscript/internal/script"
)

func (a *app) client(token string) *backend.Client {
	return backend.NewClient(a.cfg.Backend.BaseURL, token, a.cfg.Backend.Timeout())
}

// login requests a workspace token and stores it in the OS keychain.
// The issuer key may also come from CSP_ISSUER_KEY.
func (a *app) login(ctx context.Context, args []string) error {
	ws := a.cfg.Backend.Workspace
	if len(args) > 0 {
		ws = args[0]
	}
	if !backend.ValidWorkspace(ws) {
		return usageError{"login requires a valid <workspace>"}
	}
	issuer := os.Getenv("CSP_ISSUER_KEY")
	if len(args) > 1 {
		issuer = args[1]
	}
	tr, err := a.client("").IssueToken(ctx, issuer, ws, 0)
	if err != nil {
		return err
	}
	if err := config.SaveToken(tr.Token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	fmt.Printf("Logged in to %s as workspace %q (expires %s)\n", a.cfg.Backend.BaseURL, ws, tr.ExpiresAt)
	return nil
}

// logout revokes the stored token on the server when possible and always
// removes it from the keychain.
func (a *app) logout(ctx context.Context) error {
	if a.token != "" {
		if err := a.client(a.token).RevokeToken(ctx); err != nil {
			a.log.Warn("server-side revoke failed", slog.Any("err", err))
		}
	}
	if err := config.ClearToken(); err != nil {
		return err
	}
	fmt.Println("Backend token removed.")
	return nil
}

func (a *app) remote(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return usageError{"remote requires a subcommand"}
	}
	if a.token == "" {
		return errors.New("no backend token; run \"callscript login <workspace>\" first")
	}
	c := a.client(a.token)
	sub, rest := args[0], args[1:]
	switch sub {
	case "list":
		list, err := c.ListScripts(ctx)
		if err != nil {
			return err
		}
		for _, r := range list {
			fmt.Printf("%-32s beats=%d structured=%t\n", r.Name, r.BeatCount, r.Structured)
		}
		return nil
	case "get":
		rest, asJSON := hasFlag(rest, "--json")
		if len(rest) < 1 {
			return usageError{"remote get requires <name>"}
		}
		rec, err := c.GetScript(ctx, rest[0])
		if err != nil {
			return remoteNotFound(err, rest[0])
		}
		ps := script.ParsedScript{Beats: []script.Beat{}}
		if rec.Parsed != nil {
			ps = *rec.Parsed
		}
		return emit(os.Stdout, ps, rec.Text, asJSON)
	case "put":
		if len(rest) < 2 {
			return usageError{"remote put requires <name> and <file|->"}
		}
		text, err := readInput(rest[1])
		if err != nil {
			return err
		}
		rec, err := c.PutScript(ctx, rest[0], text)
		if err != nil {
			return err
		}
		fmt.Printf("Stored %q (%d beats, structured=%t)\n", rec.Name, rec.BeatCount, rec.Structured)
		return nil
	case "delete":
		if len(rest) < 1 {
			return usageError{"remote delete requires <name>"}
		}
		if err := c.DeleteScript(ctx, rest[0]); err != nil {
			return remoteNotFound(err, rest[0])
		}
		fmt.Printf("Deleted %q\n", rest[0])
		return nil
	case "search":
		q, asJSON, err := parseSearchArgs("remote search", rest)
		if err != nil {
			return err
		}
		res, err := c.Search(ctx, q)
		if err != nil {
			return err
		}
		return printResults(res, asJSON)
	case "parse":
		rest, asJSON := hasFlag(rest, "--json")
		if len(rest) < 1 {
			return usageError{"remote parse requires <file|->"}
		}
		text, err := readInput(rest[0])
		if err != nil {
			return err
		}
		ps, err := c.Parse(ctx, text)
		if err != nil {
			return err
		}
		return emit(os.Stdout, ps, text, asJSON)
	default:
		return usageError{fmt.Sprintf("unknown remote subcommand %q", sub)}
	}
}

func remoteNotFound(err error, name string) error {
	if backend.IsNotFound(err) {
		return fmt.Errorf("no remote script named %q", name)
	}
	return err
}

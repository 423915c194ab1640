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
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"callscript/internal/backend"
	"callscript/internal/config"
	"callscript/internal/crash"
	applog "callscript/internal/log"
	"callscript/internal/storage"
	"callscript/internal/telemetry"
	"callscript/internal/version"
)

func usage() {
	fmt.Println("callscript: call script parser and library")
	fmt.Printf("Version: %s\n", version.String())
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  callscript version|-v|--version             Show version")
	fmt.Println("  callscript check <file|->                    Report whether the text parses into beats")
	fmt.Println("  callscript parse <file|-> [--json]           Print the parsed beats")
	fmt.Println("  callscript lint <file|->                     Check branch targets and reachability")
	fmt.Println("  callscript dot <file|->                      Print the beat flow as Graphviz DOT")
	fmt.Println("  callscript pdf <file|-> <out.pdf> [title]    Write a printable call sheet")
	fmt.Println("  callscript save <name> <file|->              Store a script in the local library")
	fmt.Println("  callscript show <name> [--json]              Print a stored script's beats")
	fmt.Println("  callscript list                              List stored scripts")
	fmt.Println("  callscript delete <name>                     Remove a stored script")
	fmt.Println("  callscript history <name>                    List revisions of a stored script")
	fmt.Println("  callscript search [flags] <query>            Search the local library")
	fmt.Println("  callscript reindex                           Rebuild the local search index")
	fmt.Println("  callscript serve                             Run the HTTP backend")
	fmt.Println("  callscript login <workspace> [issuer-key]    Obtain and store a backend token")
	fmt.Println("  callscript logout                            Revoke and forget the stored backend token")
	fmt.Println("  callscript remote <list|get|put|delete|search|parse> ...")
}

// app carries the loaded configuration into command handlers.
type app struct {
	cfg   config.AppConfig
	token string
	log   *slog.Logger
}

func main() {
	// .env is optional; variables already set in the environment win.
	_ = godotenv.Load()

	cfg, token, cfgErr := config.Load()
	if cfgErr != nil {
		cfg = config.Defaults()
	}
	applog.Init(cfg.Logging.LogOptions())
	l := applog.WithComponent("cli")
	if cfgErr != nil {
		l.Warn("config load failed; using defaults", slog.Any("err", cfgErr))
	}
	defer crash.Recover(filepath.Join(cfg.Library.Root, storage.DirName, "crash"))

	args := os.Args
	l.Debug("start", slog.Int("args", len(args)))
	if len(args) < 2 {
		usage()
		return
	}
	a := &app{cfg: cfg, token: token, log: l}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var err error
	switch args[1] {
	case "version", "--version", "-v":
		fmt.Println("callscript")
		fmt.Println(version.String())
		return
	case "check":
		err = a.check(args[2:])
	case "parse":
		err = a.parse(args[2:])
	case "lint":
		err = a.lint(args[2:])
	case "dot":
		err = a.dot(args[2:])
	case "pdf":
		err = a.pdf(args[2:])
	case "save":
		err = a.save(ctx, args[2:])
	case "show":
		err = a.show(ctx, args[2:])
	case "list":
		err = a.list(ctx)
	case "delete":
		err = a.remove(ctx, args[2:])
	case "history":
		err = a.history(ctx, args[2:])
	case "search":
		err = a.search(ctx, args[2:])
	case "reindex":
		err = a.reindex(ctx)
	case "serve":
		err = a.serve(ctx)
	case "login":
		err = a.login(ctx, args[2:])
	case "logout":
		err = a.logout(ctx)
	case "remote":
		err = a.remote(ctx, args[2:])
	default:
		usage()
		os.Exit(2)
	}
	flushTelemetry()
	if err != nil {
		var ue usageError
		if errors.As(err, &ue) {
			fmt.Println(ue.msg)
			usage()
			os.Exit(2)
		}
		var ee exitError
		if errors.As(err, &ee) {
			os.Exit(ee.code)
		}
		l.Error("command failed", slog.String("cmd", args[1]), slog.Any("err", err))
		fmt.Println("Error:", err)
		os.Exit(1)
	}
}

func flushTelemetry() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	telemetry.Flush(ctx)
}

// usageError reports wrong arguments; main prints it with the usage text.
type usageError struct{ msg string }

func (e usageError) Error() string { return e.msg }

// exitError requests a specific exit code after output was already written.
type exitError struct{ code int }

func (e exitError) Error() string { return fmt.Sprintf("exit status %d", e.code) }

// readInput reads a script from a file path or from stdin for "-".
func readInput(path string) (string, error) {
	if path == "-" {
		b, err := io.ReadAll(os.Stdin)
		return string(b), err
	}
	b, err := os.ReadFile(path)
	return string(b), err
}

func (a *app) openLibrary() (*storage.Library, error) {
	lib, err := storage.Open(a.cfg.Library.Root)
	if err != nil {
		return nil, err
	}
	lib.KeepRevisions = a.cfg.Library.KeepRevisions
	return lib, nil
}

// serve takes secrets from the environment; address and DSN come from the
// effective config, which already has env overrides applied.
func (a *app) serve(ctx context.Context) error {
	sc := backend.ConfigFromEnv()
	if v := a.cfg.Server.Addr; v != "" {
		sc.Addr = v
	}
	if v := a.cfg.Server.DatabaseURL; v != "" {
		sc.DatabaseURL = v
	}
	a.log.Info("serve", slog.String("addr", sc.Addr))
	return backend.Run(ctx, sc)
}

/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package version

import (
	"runtime"
	"strings"
	"testing"
)

func TestStringWithoutCommit(t *testing.T) {
	old := Commit
	Commit = ""
	t.Cleanup(func() { Commit = old })
	s := String()
	if !strings.HasPrefix(s, Version+" (") || !strings.Contains(s, runtime.Version()) {
		t.Fatalf("unexpected version string %q", s)
	}
}

func TestStringWithCommit(t *testing.T) {
	old := Commit
	Commit = "abc123"
	t.Cleanup(func() { Commit = old })
	if s := String(); !strings.HasPrefix(s, Version+"+abc123 (") {
		t.Fatalf("commit missing from %q", s)
	}
}

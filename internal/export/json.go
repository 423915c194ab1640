/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package export

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"

	"callscript/internal/script"
)

//go:embed schema/parsed_script.schema.json
var parsedScriptSchema []byte

// ErrInvalidDocument wraps schema violations reported by ValidateJSON.
var ErrInvalidDocument = errors.New("document does not match parsed script schema")

// JSON renders a parsed script as indented JSON and checks it against the schema.
func JSON(ps script.ParsedScript) ([]byte, error) {
	if ps.Beats == nil {
		ps.Beats = []script.Beat{}
	}
	b, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal parsed script: %w", err)
	}
	if err := ValidateJSON(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ValidateJSON checks a JSON document against the embedded parsed script schema.
func ValidateJSON(b []byte) error {
	schemaLoader := gojsonschema.NewBytesLoader(parsedScriptSchema)
	docLoader := gojsonschema.NewBytesLoader(b)
	result, err := gojsonschema.Validate(schemaLoader, docLoader)
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalidDocument, strings.Join(msgs, "; "))
}

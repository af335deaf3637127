/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except
 * in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the
 *  specific language governing permissions and limitations under the License.
 */

package storage

import (
	_ "embed"
	"fmt"
	"strings"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

//go:embed document.schema.json
var documentSchema []byte

// DocumentSchema returns the JSON schema of the current document format.
func DocumentSchema() []byte { return append([]byte(nil), documentSchema...) }

// SchemaError lists every violation found by ValidateDocument.
type SchemaError struct {
	Problems []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("document does not conform to schema: %s", strings.Join(e.Problems, "; "))
}

// ValidateDocument checks data against the current format schema. Legacy
// documents fail validation even though Decode accepts them.
func ValidateDocument(data []byte) error {
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(documentSchema), gojsonschema.NewBytesLoader(data))
	if err != nil {
		return fmt.Errorf("schema validate: %w", err)
	}
	if result.Valid() {
		return nil
	}
	se := &SchemaError{}
	for _, re := range result.Errors() {
		se.Problems = append(se.Problems, re.String())
	}
	return se
}

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
	"errors"
	"testing"

	gojsonschema "github.com/xeipuuv/gojsonschema"
)

func TestEncodedDocumentConformsToSchema(t *testing.T) {
	data, err := Encode(sampleDocument())
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(DocumentSchema()), gojsonschema.NewBytesLoader(data))
	if err != nil {
		t.Fatalf("schema validate error: %v", err)
	}
	if !result.Valid() {
		for _, e := range result.Errors() {
			t.Logf("schema error: %s", e)
		}
		t.Fatalf("document does not conform to schema")
	}
	if err := ValidateDocument(data); err != nil {
		t.Fatalf("ValidateDocument: %v", err)
	}
}

func TestLegacyDocumentFailsSchema(t *testing.T) {
	err := ValidateDocument([]byte(`{"elements":[{"id":"a","content":{"text":{"text":"x"}}}]}`))
	var se *SchemaError
	if !errors.As(err, &se) || len(se.Problems) == 0 {
		t.Fatalf("expected schema problems, got %v", err)
	}
}

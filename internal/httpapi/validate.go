package httpapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/xeipuuv/gojsonschema"

	"github.com/easeverse/server/internal/apperr"
)

// Audio clips arrive base64-inlined, so POST bodies can get large.
const maxBodyBytes = 16 << 20

// decodeAndValidate reads r.Body, validates it against schema (a compiled
// JSON Schema), and unmarshals it into dst. schema may be nil to skip
// validation for routes with looser bodies.
func decodeAndValidate(r *http.Request, schema *gojsonschema.Schema, dst any) error {
	raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return &apperr.ValidationError{Reason: "could not read request body"}
	}
	if len(raw) == 0 {
		return &apperr.ValidationError{Reason: "request body is required"}
	}

	if schema != nil {
		result, err := schema.Validate(gojsonschema.NewBytesLoader(raw))
		if err != nil {
			return &apperr.ValidationError{Reason: "malformed JSON body"}
		}
		if !result.Valid() {
			return &apperr.ValidationError{Reason: schemaErrorSummary(result)}
		}
	}

	if err := json.Unmarshal(raw, dst); err != nil {
		return &apperr.ValidationError{Reason: "malformed JSON body"}
	}
	return nil
}

func schemaErrorSummary(result *gojsonschema.Result) string {
	errs := result.Errors()
	if len(errs) == 0 {
		return "request body failed validation"
	}
	return fmt.Sprintf("%s: %s", errs[0].Field(), errs[0].Description())
}

// compileSchema compiles a raw JSON schema document literal. Called once at
// startup per route; a bad schema is a programmer error and panics.
func compileSchema(doc string) *gojsonschema.Schema {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(doc))
	if err != nil {
		panic(fmt.Sprintf("invalid embedded JSON schema: %v", err))
	}
	return schema
}

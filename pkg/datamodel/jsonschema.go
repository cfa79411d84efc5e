package datamodel

import (
	"bytes"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema/*.json
var schemaFS embed.FS

const schemaBaseURL = "https://github.com/instill-ai/breed-recognition/blob/main/pkg/datamodel/"

// LabelsJSONSchema validates label resource documents
var LabelsJSONSchema *jsonschema.Schema

// ManifestJSONSchema validates model manifest documents
var ManifestJSONSchema *jsonschema.Schema

var schemaOnce sync.Once
var schemaErr error

// InitJSONSchema compiles the embedded schemas. It is safe to call more than
// once.
func InitJSONSchema() error {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiler.Draft = jsonschema.Draft7

		for _, name := range []string{"schema/labels.json", "schema/manifest.json"} {
			b, err := schemaFS.ReadFile(name)
			if err != nil {
				schemaErr = err
				return
			}
			if err := compiler.AddResource(schemaBaseURL+name, bytes.NewReader(b)); err != nil {
				schemaErr = fmt.Errorf("adding schema %s: %w", name, err)
				return
			}
		}

		if LabelsJSONSchema, schemaErr = compiler.Compile(schemaBaseURL + "schema/labels.json"); schemaErr != nil {
			return
		}
		ManifestJSONSchema, schemaErr = compiler.Compile(schemaBaseURL + "schema/manifest.json")
	})
	return schemaErr
}

// ValidateJSONSchema validates doc against schema. doc may be any value that
// encoding/json can marshal, e.g. the output of yaml.v3 decoding.
func ValidateJSONSchema(schema *jsonschema.Schema, doc any) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	if err := schema.Validate(v); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			b, _ := json.MarshalIndent(verr.DetailedOutput(), "", "  ")
			return errors.New(string(b))
		}
		return err
	}

	return nil
}

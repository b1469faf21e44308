package store

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/verte-zerg/weakwords/internal/model"
)

// ErrInvalidImport wraps every reason an import payload is rejected.
var ErrInvalidImport = errors.New("invalid import")

//go:embed import.schema.json
var importSchemaJSON []byte

const importSchemaURL = "weakwords://import.schema.json"

var (
	importSchemaOnce sync.Once
	importSchema     *jsonschema.Schema
	importSchemaErr  error
)

// Import holds the lists carried by an import payload.
type Import struct {
	SlowWords    map[string]*model.SlowWord `json:"slowWords"`
	ErroredWords map[string]int             `json:"erroredWords"`
}

// ParseImport decodes and validates an import payload. A payload needs at
// least one of slowWords and erroredWords; other fields are ignored.
func ParseImport(raw []byte) (Import, error) {
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Import{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	obj, ok := doc.(map[string]any)
	if !ok {
		return Import{}, fmt.Errorf("%w: invalid format", ErrInvalidImport)
	}
	_, hasSlow := obj["slowWords"]
	_, hasErrors := obj["erroredWords"]
	if !hasSlow && !hasErrors {
		return Import{}, fmt.Errorf("%w: invalid format", ErrInvalidImport)
	}

	schema, err := compiledImportSchema()
	if err != nil {
		return Import{}, err
	}
	if err := schema.Validate(doc); err != nil {
		var verr *jsonschema.ValidationError
		if errors.As(err, &verr) {
			return Import{}, fmt.Errorf("%w: %s", ErrInvalidImport, leafMessage(verr))
		}
		return Import{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}

	var in Import
	if err := json.Unmarshal(raw, &in); err != nil {
		return Import{}, fmt.Errorf("%w: %v", ErrInvalidImport, err)
	}
	return in, nil
}

func compiledImportSchema() (*jsonschema.Schema, error) {
	importSchemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		if err := compiler.AddResource(importSchemaURL, bytes.NewReader(importSchemaJSON)); err != nil {
			importSchemaErr = fmt.Errorf("add import schema: %w", err)
			return
		}
		importSchema, importSchemaErr = compiler.Compile(importSchemaURL)
	})
	return importSchema, importSchemaErr
}

// leafMessage returns the most specific failure, prefixed by its location.
func leafMessage(verr *jsonschema.ValidationError) string {
	for len(verr.Causes) > 0 {
		verr = verr.Causes[0]
	}
	if verr.InstanceLocation == "" {
		return verr.Message
	}
	return verr.InstanceLocation + ": " + verr.Message
}

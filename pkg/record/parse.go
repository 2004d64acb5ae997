package record

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/Masterminds/semver/v3"
	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed record.schema.json
var schemaJSON []byte

const schemaURL = "https://docufy.schemas.local/record/v1.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error

	compatible = semver.MustParse("1.0.0")
	constraint *semver.Constraints
)

func init() {
	c, err := semver.NewConstraint(">= 1.0, < 2.0")
	if err != nil {
		panic(err)
	}
	constraint = c
}

func schema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		if err := c.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
			compileErr = fmt.Errorf("record schema load failed: %w", err)
			return
		}
		compiled, compileErr = c.Compile(schemaURL)
	})
	return compiled, compileErr
}

// FromMetadata decodes the JSON value found under label 674. Payloads from
// other applications sharing the label (CIP-20 messages, for instance) fail
// the schema and come back as ErrNotFound.
func FromMetadata(raw json.RawMessage) (Record, error) {
	if len(raw) == 0 {
		return Record{}, ErrNotFound
	}
	s, err := schema()
	if err != nil {
		return Record{}, err
	}
	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	if err := s.Validate(doc); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	var r Record
	if err := json.Unmarshal(raw, &r); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrNotFound, err)
	}
	return r, nil
}

// Compatible reports whether this build understands the record's version.
// Records written before versioning carry none and are read as 1.0.
func (r Record) Compatible() error {
	v := compatible
	if r.Version != "" {
		parsed, err := semver.NewVersion(r.Version)
		if err != nil {
			return fmt.Errorf("record version %q: %w", r.Version, err)
		}
		v = parsed
	}
	if !constraint.Check(v) {
		return fmt.Errorf("record version %s outside %s", v, constraint)
	}
	return nil
}

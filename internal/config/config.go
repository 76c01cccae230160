// Package config loads and validates the packaging descriptor that seeds a
// Controller (spec §6, SPEC_FULL AMBIENT STACK). It follows the teacher's
// embedded-schema discipline (update_target.go's schema-validated
// UpdateTargetConfig) but validates against a real JSON Schema document
// instead of a hand-rolled field checklist, since the teacher's own go.mod
// already carries github.com/santhosh-tekuri/jsonschema/v6 for this purpose.
package config

import (
	_ "embed"
	"encoding/json"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/peerio/updater/internal/model"
)

//go:embed schema/configuration.schema.json
var schemaJSON []byte

const schemaID = "https://peerio.com/schemas/updater-config.schema.json"

var (
	compileOnce sync.Once
	compiled    *jsonschema.Schema
	compileErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	compileOnce.Do(func() {
		res, err := jsonschema.UnmarshalJSON(strings.NewReader(string(schemaJSON)))
		if err != nil {
			compileErr = model.Wrap(model.ErrConfigInvalid, err, "unmarshal embedded configuration schema")
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(schemaID, res); err != nil {
			compileErr = model.Wrap(model.ErrConfigInvalid, err, "load embedded configuration schema")
			return
		}
		compiled, compileErr = c.Compile(schemaID)
	})
	return compiled, compileErr
}

// Load parses and schema-validates a packaging descriptor, then type-checks
// it into a model.Configuration (spec §6: "Non-goals" excludes the
// bootstrapping glue that locates this file, not the descriptor's shape).
func Load(data []byte) (model.Configuration, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return model.Configuration{}, model.Wrap(model.ErrConfigInvalid, err, "parse configuration JSON")
	}

	schema, err := compiledSchema()
	if err != nil {
		return model.Configuration{}, err
	}
	if err := schema.Validate(doc); err != nil {
		return model.Configuration{}, model.Wrap(model.ErrConfigInvalid, err, "configuration failed schema validation")
	}

	var cfg model.Configuration
	if err := json.Unmarshal(data, &cfg); err != nil {
		return model.Configuration{}, model.Wrap(model.ErrConfigInvalid, err, "decode configuration")
	}
	return cfg, nil
}

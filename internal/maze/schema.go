// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Labyrinth Contributors

package maze

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// DefinitionSchemaID is the $id of the maze definition schema.
const DefinitionSchemaID = "https://labyrinth.game/schemas/maze.schema.json"

// GenerateSchema renders the JSON Schema of maze definition files.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{DoNotReference: true}
	schema := r.Reflect(&Definition{})
	schema.ID = jsonschema.ID(DefinitionSchemaID)
	schema.Title = "Labyrinth Maze Definition"
	schema.Description = "Schema for maze definition files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code(CodeInternal).Wrap(err)
	}
	return data, nil
}

var compiledSchema = sync.OnceValues(compileSchema)

func compileSchema() (*jschema.Schema, error) {
	raw, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	doc, err := jschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, oops.Code(CodeInternal).Wrap(err)
	}
	c := jschema.NewCompiler()
	if err := c.AddResource("maze.schema.json", doc); err != nil {
		return nil, oops.Code(CodeInternal).Wrap(err)
	}
	sch, err := c.Compile("maze.schema.json")
	if err != nil {
		return nil, oops.Code(CodeInternal).Wrap(err)
	}
	return sch, nil
}

// ValidateDefinitionSchema checks YAML data against the definition schema.
func ValidateDefinitionSchema(data []byte) error {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return invalidDefinition().Wrapf(err, "invalid YAML")
	}
	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(toJSONTypes(doc)); err != nil {
		return invalidDefinition().Wrapf(err, "schema validation failed")
	}
	return nil
}

// toJSONTypes converts maps with non-string keys, which YAML allows and
// JSON does not.
func toJSONTypes(v any) any {
	switch val := v.(type) {
	case map[string]any:
		for k, item := range val {
			val[k] = toJSONTypes(item)
		}
		return val
	case map[any]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[fmt.Sprint(k)] = toJSONTypes(item)
		}
		return out
	case []any:
		for i, item := range val {
			val[i] = toJSONTypes(item)
		}
		return val
	default:
		return val
	}
}

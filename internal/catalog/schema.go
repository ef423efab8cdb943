// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 RetroBridge Contributors

package catalog

import (
	"encoding/json"
	"strings"
	"sync"

	"github.com/invopop/jsonschema"
	"github.com/samber/oops"
	jschema "github.com/santhosh-tekuri/jsonschema/v6"
	"gopkg.in/yaml.v3"
)

// SchemaID is the $id of the catalog JSON Schema.
const SchemaID = "https://retrobridge.dev/schemas/catalog.schema.json"

var (
	schemaMu    sync.Mutex
	schemaCache *jschema.Schema
)

// GenerateSchema generates a JSON Schema from the Catalog struct.
func GenerateSchema() ([]byte, error) {
	r := jsonschema.Reflector{
		DoNotReference: true,
	}
	schema := r.Reflect(&Catalog{})

	schema.ID = jsonschema.ID(SchemaID)
	schema.Title = "RetroBridge Core Catalog"
	schema.Description = "Schema for libretro core catalog files"

	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return nil, oops.Code("SCHEMA_FAILED").Wrap(err)
	}
	return data, nil
}

// ValidateSchema validates YAML data against the catalog JSON Schema.
func ValidateSchema(data []byte) error {
	if len(data) == 0 {
		return oops.Code(CodeBadCatalog).Errorf("catalog data is empty")
	}

	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return oops.Code(CodeBadCatalog).Hint("catalog must be YAML").Wrap(err)
	}

	sch, err := compiledSchema()
	if err != nil {
		return err
	}
	if err := sch.Validate(scalarText(&doc)); err != nil {
		return oops.Code(CodeBadCatalog).Wrapf(err, "schema validation failed")
	}
	return nil
}

func compiledSchema() (*jschema.Schema, error) {
	schemaMu.Lock()
	defer schemaMu.Unlock()
	if schemaCache != nil {
		return schemaCache, nil
	}

	schemaBytes, err := GenerateSchema()
	if err != nil {
		return nil, err
	}
	var schemaData any
	if err := json.Unmarshal(schemaBytes, &schemaData); err != nil {
		return nil, oops.Code("SCHEMA_FAILED").Wrap(err)
	}

	c := jschema.NewCompiler()
	if err := c.AddResource("catalog.schema.json", schemaData); err != nil {
		return nil, oops.Code("SCHEMA_FAILED").Wrap(err)
	}
	sch, err := c.Compile("catalog.schema.json")
	if err != nil {
		return nil, oops.Code("SCHEMA_FAILED").Wrap(err)
	}
	schemaCache = sch
	return sch, nil
}

// scalarText converts a YAML document into validator input. Scalars keep
// their source text, matching how the struct decoder fills string fields,
// so an unquoted all-digit checksum validates the same way Parse reads it.
// Null mapping values are dropped like the zero values Parse leaves behind.
func scalarText(n *yaml.Node) any {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return nil
		}
		return scalarText(n.Content[0])
	case yaml.AliasNode:
		return scalarText(n.Alias)
	case yaml.MappingNode:
		out := make(map[string]any, len(n.Content)/2)
		for i := 0; i+1 < len(n.Content); i += 2 {
			v := n.Content[i+1]
			if v.Kind == yaml.ScalarNode && v.Tag == "!!null" {
				continue
			}
			out[n.Content[i].Value] = scalarText(v)
		}
		return out
	case yaml.SequenceNode:
		out := make([]any, len(n.Content))
		for i, c := range n.Content {
			out[i] = scalarText(c)
		}
		return out
	case yaml.ScalarNode:
		if n.Tag == "!!null" {
			return nil
		}
		return n.Value
	default:
		return nil
	}
}

// FormatSchemaError formats a schema validation error for display.
func FormatSchemaError(err error) string {
	if err == nil {
		return ""
	}
	return strings.TrimPrefix(err.Error(), "schema validation failed: ")
}

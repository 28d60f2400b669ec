// Package manifest implements the C10 mount-request batch format: a
// MountRequestSet described in YAML or JSON, validated against a fixed
// JSON schema before being turned into mountctx.Request values.
package manifest

import (
	"bytes"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/blkcore/blkmount/internal/mount/mountctx"
)

// schemaDoc constrains a manifest to a non-empty list of entries each
// carrying at least source and target; fstype/optstr are optional
// exactly as in an /etc/fstab line.
const schemaDoc = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "required": ["requests"],
  "properties": {
    "continueOnError": {"type": "boolean"},
    "requests": {
      "type": "array",
      "minItems": 1,
      "items": {
        "type": "object",
        "required": ["source", "target"],
        "properties": {
          "source": {"type": "string", "minLength": 1},
          "target": {"type": "string", "minLength": 1},
          "fstype": {"type": "string"},
          "optstr": {"type": "string"}
        }
      }
    }
  }
}`

var schema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	c := jsonschema.NewCompiler()
	if err := c.AddResource("manifest.json", bytes.NewReader([]byte(schemaDoc))); err != nil {
		panic(fmt.Sprintf("manifest: invalid built-in schema: %v", err))
	}
	return c.MustCompile("manifest.json")
}

// entry mirrors mountctx.Request with the JSON/YAML field names the
// schema validates.
type entry struct {
	Source string `json:"source"`
	Target string `json:"target"`
	FSType string `json:"fstype,omitempty"`
	OptStr string `json:"optstr,omitempty"`
}

// doc is the on-disk shape of a manifest.
type doc struct {
	ContinueOnError bool    `json:"continueOnError,omitempty"`
	Requests        []entry `json:"requests"`
}

// Manifest is a validated, parsed mount-request batch, ready to drive a
// mountctx.RequestSet.
type Manifest struct {
	ContinueOnError bool
	Requests        []mountctx.Request
}

// Load reads path (YAML or JSON — sigs.k8s.io/yaml accepts both),
// validates it against the built-in schema, and returns the parsed
// Manifest.
func Load(path string) (*Manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse validates and decodes raw YAML/JSON manifest bytes.
func Parse(raw []byte) (*Manifest, error) {
	jsonBytes, err := sigsyaml.YAMLToJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("manifest: convert to JSON: %w", err)
	}

	var generic any
	if err := sigsyaml.Unmarshal(jsonBytes, &generic); err != nil {
		return nil, fmt.Errorf("manifest: decode for validation: %w", err)
	}
	if err := schema.Validate(generic); err != nil {
		return nil, fmt.Errorf("manifest: schema validation: %w", err)
	}

	var d doc
	if err := sigsyaml.Unmarshal(jsonBytes, &d); err != nil {
		return nil, fmt.Errorf("manifest: decode: %w", err)
	}

	m := &Manifest{ContinueOnError: d.ContinueOnError}
	for _, e := range d.Requests {
		m.Requests = append(m.Requests, mountctx.Request{
			Source: e.Source,
			Target: e.Target,
			FSType: e.FSType,
			OptStr: e.OptStr,
		})
	}
	return m, nil
}

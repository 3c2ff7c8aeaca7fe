// CUE schema validation for fleet configs
package config

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	cueyaml "cuelang.org/go/encoding/yaml"
)

// schemaRoot is the definition every config file must satisfy.
const schemaRoot = "#Config"

// Schema is a compiled CUE schema holding a #Config definition.
type Schema struct {
	name string
	ctx  *cue.Context
	def  cue.Value
}

// LoadSchema reads and compiles a CUE schema file.
func LoadSchema(path string) (*Schema, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read CUE schema: %w", err)
	}
	return CompileSchema(path, src)
}

// CompileSchema compiles schema source; name is used in error positions.
func CompileSchema(name string, src []byte) (*Schema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(src, cue.Filename(name))
	if v.Err() != nil {
		return nil, fmt.Errorf("cannot compile CUE schema: %s", cueerrors.Details(v.Err(), nil))
	}
	def := v.LookupPath(cue.ParsePath(schemaRoot))
	if !def.Exists() {
		return nil, fmt.Errorf("schema %s has no %s definition", name, schemaRoot)
	}
	return &Schema{name: name, ctx: ctx, def: def}, nil
}

// Validate checks YAML bytes against the schema. Every violation is listed
// with its position.
func (s *Schema) Validate(configName string, data []byte) error {
	f, err := cueyaml.Extract(configName, data)
	if err != nil {
		return fmt.Errorf("cannot parse YAML config: %w", err)
	}
	v := s.ctx.BuildFile(f)
	if v.Err() != nil {
		return fmt.Errorf("cannot build YAML config: %w", v.Err())
	}
	if err := s.def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("%s does not match %s:\n%s", configName, s.name, cueerrors.Details(err, nil))
	}
	return nil
}

// ValidateWithCue validates a YAML configuration file using a CUE schema file.
func ValidateWithCue(configFile, cueFile string) error {
	schema, err := LoadSchema(cueFile)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(configFile)
	if err != nil {
		return fmt.Errorf("cannot read YAML config: %w", err)
	}
	return schema.Validate(configFile, data)
}

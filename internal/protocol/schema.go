package protocol

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const schemaBase = "https://pirateisles.local/schemas/"

// Validator checks raw inbound frames against the embedded schemas.
// Compiled schemas are safe for concurrent use.
type Validator struct {
	hello   *jsonschema.Schema
	command *jsonschema.Schema
}

func NewValidator() (*Validator, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	names := []string{"hello.schema.json", "command.schema.json"}
	for _, name := range names {
		b, err := schemaFS.ReadFile("schemas/" + name)
		if err != nil {
			return nil, fmt.Errorf("read schema %s: %w", name, err)
		}
		if err := c.AddResource(schemaBase+name, bytes.NewReader(b)); err != nil {
			return nil, fmt.Errorf("add schema %s: %w", name, err)
		}
	}
	hello, err := c.Compile(schemaBase + "hello.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile hello schema: %w", err)
	}
	command, err := c.Compile(schemaBase + "command.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compile command schema: %w", err)
	}
	return &Validator{hello: hello, command: command}, nil
}

func (v *Validator) ValidateHello(raw []byte) error { return validate(v.hello, raw) }

func (v *Validator) ValidateCommand(raw []byte) error { return validate(v.command, raw) }

func validate(s *jsonschema.Schema, raw []byte) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return err
	}
	return s.Validate(doc)
}

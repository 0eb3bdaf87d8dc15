package webhook

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/pkordes/nemt-dispatch/internal/domain"
)

//go:embed schema/ritten.json
var rittenSchema []byte

const rittenSchemaURL = "nemt://schema/ritten.json"

// RittenDecoder validates Ritten.io callbacks against the embedded JSON Schema
// and decodes them. The schema is compiled once; a decoder is safe for
// concurrent use.
type RittenDecoder struct {
	schema *jsonschema.Schema
}

// NewRittenDecoder compiles the Ritten payload schema.
func NewRittenDecoder() (*RittenDecoder, error) {
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(rittenSchema))
	if err != nil {
		return nil, fmt.Errorf("webhook.NewRittenDecoder: parse schema: %w", err)
	}
	c := jsonschema.NewCompiler()
	c.AssertFormat()
	if err := c.AddResource(rittenSchemaURL, doc); err != nil {
		return nil, fmt.Errorf("webhook.NewRittenDecoder: add schema: %w", err)
	}
	compiled, err := c.Compile(rittenSchemaURL)
	if err != nil {
		return nil, fmt.Errorf("webhook.NewRittenDecoder: compile schema: %w", err)
	}
	return &RittenDecoder{schema: compiled}, nil
}

// Decode validates raw and returns the decoded event.
// Schema violations are reported as domain.ErrValidation.
func (d *RittenDecoder) Decode(raw []byte) (domain.RittenEvent, error) {
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return domain.RittenEvent{}, fmt.Errorf("%w: malformed JSON: %v", domain.ErrValidation, err)
	}
	if err := d.schema.Validate(inst); err != nil {
		return domain.RittenEvent{}, fmt.Errorf("%w: ritten payload: %v", domain.ErrValidation, err)
	}

	var ev domain.RittenEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return domain.RittenEvent{}, fmt.Errorf("%w: ritten payload: %v", domain.ErrValidation, err)
	}
	return ev, nil
}

package edl

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func compiledDocSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		c := jsonschema.NewCompiler()
		c.Draft = jsonschema.Draft2020
		const url = "https://audio-service.local/schemas/edl.schema.json"
		if err := c.AddResource(url, strings.NewReader(docSchema)); err != nil {
			schemaErr = fmt.Errorf("edl: load schema: %w", err)
			return
		}
		compiledSchema, schemaErr = c.Compile(url)
	})
	return compiledSchema, schemaErr
}

// ParseDocument decodes a wire-format EDL document, rejecting unknown
// fields and validating it against the JSON Schema before unmarshalling
// into an Edl. Fade shape and enum-like strings are upper-cased first so
// case-insensitive enum parsing holds for both schema validation and the
// resulting struct.
func ParseDocument(data []byte) (Edl, error) {
	var raw map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return Edl{}, fmt.Errorf("edl: invalid JSON: %w", err)
	}
	normalizeFadeShapes(raw)

	normalized, err := json.Marshal(raw)
	if err != nil {
		return Edl{}, fmt.Errorf("edl: re-encode: %w", err)
	}

	schema, err := compiledDocSchema()
	if err != nil {
		return Edl{}, err
	}
	var schemaDoc any
	if err := json.Unmarshal(normalized, &schemaDoc); err != nil {
		return Edl{}, fmt.Errorf("edl: re-decode for schema: %w", err)
	}
	if err := schema.Validate(schemaDoc); err != nil {
		return Edl{}, fmt.Errorf("edl: schema validation failed: %w", err)
	}

	var out Edl
	strictDec := json.NewDecoder(bytes.NewReader(normalized))
	strictDec.DisallowUnknownFields()
	if err := strictDec.Decode(&out); err != nil {
		return Edl{}, fmt.Errorf("edl: decode: %w", err)
	}
	return out, nil
}

// normalizeFadeShapes walks the raw document and upper-cases every
// "shape" field under "fade_in"/"fade_out", so callers may submit
// "linear", "Linear" or "LINEAR" interchangeably.
func normalizeFadeShapes(raw map[string]any) {
	tracks, _ := raw["tracks"].([]any)
	for _, t := range tracks {
		track, ok := t.(map[string]any)
		if !ok {
			continue
		}
		clips, _ := track["clips"].([]any)
		for _, c := range clips {
			clip, ok := c.(map[string]any)
			if !ok {
				continue
			}
			for _, key := range []string{"fade_in", "fade_out"} {
				fade, ok := clip[key].(map[string]any)
				if !ok {
					continue
				}
				if shape, ok := fade["shape"].(string); ok {
					fade["shape"] = strings.ToUpper(shape)
				}
			}
		}
	}
}

// MarshalDocument serializes an Edl back to its wire JSON form.
func MarshalDocument(e Edl) ([]byte, error) {
	return json.Marshal(e)
}

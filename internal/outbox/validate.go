package outbox

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

// ErrInvalidPayload marks payloads that do not satisfy their event schema.
var ErrInvalidPayload = errors.New("payload rejected by schema")

var compiledSchemas sync.Map // map[string]*jsonschema.Schema

// Validate checks payload against the JSON schema registered for eventType.
func Validate(eventType string, payload []byte) error {
	meta, ok := Lookup(eventType)
	if !ok {
		return fmt.Errorf("no schema metadata for event_type=%s", eventType)
	}

	schema, err := compiledSchema(eventType, meta.Schema)
	if err != nil {
		return err
	}

	var parsed any
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", ErrInvalidPayload, err)
	}
	if err := schema.Validate(parsed); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	return nil
}

func compiledSchema(eventType, definition string) (*jsonschema.Schema, error) {
	if cached, ok := compiledSchemas.Load(eventType); ok {
		return cached.(*jsonschema.Schema), nil
	}

	var doc any
	if err := json.Unmarshal([]byte(definition), &doc); err != nil {
		return nil, fmt.Errorf("parse schema for %s: %w", eventType, err)
	}

	c := jsonschema.NewCompiler()
	c.AssertFormat()
	url := fmt.Sprintf("schema://%s.json", eventType)
	if err := c.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource: %w", err)
	}
	compiled, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema for %s: %w", eventType, err)
	}

	compiledSchemas.Store(eventType, compiled)
	return compiled, nil
}

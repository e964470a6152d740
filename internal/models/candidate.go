// internal/models/candidate.go
package models

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xeipuuv/gojsonschema"
)

// AssetCandidate is the immutable input to the publishing pipeline: one
// generated image plus its demand metadata. Produced by the external
// generation step, one per keyword per style variant.
type AssetCandidate struct {
	Keyword      string `json:"keyword"`
	Version      int    `json:"version"`
	FilePath     string `json:"filePath"`
	SearchVolume int    `json:"searchVolume"`
}

// Key identifies a candidate for idempotency checks.
func (c AssetCandidate) Key() string {
	return fmt.Sprintf("%s#%d", c.Keyword, c.Version)
}

const candidateSchema = `{
	"type": "object",
	"required": ["keyword", "version", "filePath"],
	"additionalProperties": true,
	"properties": {
		"keyword":      {"type": "string", "minLength": 1},
		"version":      {"type": "integer", "minimum": 1},
		"filePath":     {"type": "string", "minLength": 1},
		"searchVolume": {"type": "integer", "minimum": 0}
	}
}`

var candidateSchemaLoader = gojsonschema.NewStringLoader(candidateSchema)

// Validate checks a candidate against the manifest schema. A nil return
// means the candidate is safe to dequeue.
func (c AssetCandidate) Validate() error {
	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal candidate: %w", err)
	}

	result, err := gojsonschema.Validate(candidateSchemaLoader, gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation: %w", err)
	}
	if !result.Valid() {
		return fmt.Errorf("invalid candidate: %s", formatSchemaErrors(result))
	}
	return nil
}

func formatSchemaErrors(result *gojsonschema.Result) string {
	msg := ""
	for i, desc := range result.Errors() {
		if i > 0 {
			msg += "; "
		}
		msg += desc.String()
	}
	return msg
}

// LoadManifest reads a JSON candidate manifest. Rows that fail schema
// validation are returned separately so the caller can record them as
// invalid without dropping siblings.
func LoadManifest(path string) (valid []AssetCandidate, invalid []json.RawMessage, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read manifest: %w", err)
	}

	var rows []json.RawMessage
	if err := json.Unmarshal(data, &rows); err != nil {
		return nil, nil, fmt.Errorf("parse manifest: %w", err)
	}

	for _, row := range rows {
		result, verr := gojsonschema.Validate(candidateSchemaLoader, gojsonschema.NewBytesLoader(row))
		if verr != nil || !result.Valid() {
			invalid = append(invalid, row)
			continue
		}
		var c AssetCandidate
		if json.Unmarshal(row, &c) != nil {
			invalid = append(invalid, row)
			continue
		}
		valid = append(valid, c)
	}
	return valid, invalid, nil
}

package fs

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"github.com/aretw0/productbaker/pkg/core"
)

// Serializer defines how a record file is encoded on disk.
type Serializer interface {
	// Ext is the file extension, including the dot.
	Ext() string
	// Serialize converts the record to file contents.
	Serialize(rec core.Record) ([]byte, error)
	// Parse reads a record back from file contents.
	Parse(data []byte) (core.Record, error)
}

// DefaultSerializers returns the supported formats keyed by name.
func DefaultSerializers() map[string]Serializer {
	return map[string]Serializer{
		"json": JSONSerializer{},
		"yaml": YAMLSerializer{},
	}
}

// --- JSON Serializer ---

// JSONSerializer writes the record envelope as indented JSON.
type JSONSerializer struct{}

func (JSONSerializer) Ext() string { return ".json" }

func (JSONSerializer) Serialize(rec core.Record) ([]byte, error) {
	return json.MarshalIndent(rec, "", "  ")
}

func (JSONSerializer) Parse(data []byte) (core.Record, error) {
	var rec core.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return core.Record{}, fmt.Errorf("invalid json: %w", err)
	}
	var compact bytes.Buffer
	if err := json.Compact(&compact, rec.Data); err != nil {
		return core.Record{}, fmt.Errorf("invalid json document: %w", err)
	}
	rec.Data = compact.Bytes()
	return rec, nil
}

// --- YAML Serializer ---

// YAMLSerializer writes the record envelope as YAML. The document is
// converted through a generic value, so key order inside objects is not kept.
type YAMLSerializer struct{}

type yamlRecord struct {
	Key       string `yaml:"key"`
	Timestamp int64  `yaml:"timestamp"`
	Data      any    `yaml:"data"`
}

func (YAMLSerializer) Ext() string { return ".yaml" }

func (YAMLSerializer) Serialize(rec core.Record) ([]byte, error) {
	var data any
	if err := json.Unmarshal(rec.Data, &data); err != nil {
		return nil, fmt.Errorf("invalid json document: %w", err)
	}
	return yaml.Marshal(yamlRecord{Key: rec.Key, Timestamp: rec.Timestamp, Data: data})
}

func (YAMLSerializer) Parse(data []byte) (core.Record, error) {
	var payload yamlRecord
	if err := yaml.Unmarshal(data, &payload); err != nil {
		return core.Record{}, fmt.Errorf("invalid yaml: %w", err)
	}
	doc, err := json.Marshal(normalize(payload.Data))
	if err != nil {
		return core.Record{}, fmt.Errorf("yaml document is not representable as json: %w", err)
	}
	return core.Record{Key: payload.Key, Timestamp: payload.Timestamp, Data: doc}, nil
}

// normalize converts YAML mappings with non-string keys into JSON objects.
func normalize(val any) any {
	switch v := val.(type) {
	case map[string]any:
		for k, item := range v {
			v[k] = normalize(item)
		}
		return v
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, item := range v {
			m[fmt.Sprint(k)] = normalize(item)
		}
		return m
	case []any:
		for i, item := range v {
			v[i] = normalize(item)
		}
		return v
	default:
		return v
	}
}

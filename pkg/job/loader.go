package job

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and validates a job descriptor from the given file path.
//
// The format is determined by extension: .yaml/.yml for YAML, .json for
// JSON. With an unrecognized extension, YAML is attempted first, then
// JSON. After schema validation, defaults are applied.
func Load(path string) (*Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("job file not found: %s", path)
		}
		if os.IsPermission(err) {
			return nil, fmt.Errorf("permission denied reading job file: %s", path)
		}
		return nil, fmt.Errorf("failed to read job file: %w", err)
	}
	return LoadFromBytes(data, path)
}

// LoadFromBytes parses and validates a job descriptor from raw bytes.
// The path parameter is used for error messages and format detection.
//
// Validation runs on the raw document (converted to JSON) before struct
// decoding, so unknown fields are rejected rather than silently dropped.
func LoadFromBytes(data []byte, path string) (*Descriptor, error) {
	if len(data) == 0 {
		return nil, errors.New("job file is empty")
	}

	jsonData, err := toJSON(data, path)
	if err != nil {
		return nil, err
	}
	if err := ValidateRaw(jsonData); err != nil {
		return nil, err
	}

	d, err := parseDescriptor(data, path)
	if err != nil {
		return nil, err
	}
	d.ApplyDefaults()
	return d, nil
}

// LoadFromReader reads and validates a job descriptor from an io.Reader.
func LoadFromReader(r io.Reader, path string) (*Descriptor, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read job descriptor: %w", err)
	}
	return LoadFromBytes(data, path)
}

func parseDescriptor(data []byte, path string) (*Descriptor, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return parseJSON(data)
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		d, yamlErr := parseYAML(data)
		if yamlErr == nil {
			return d, nil
		}
		d, jsonErr := parseJSON(data)
		if jsonErr == nil {
			return d, nil
		}
		return nil, fmt.Errorf("failed to parse job descriptor (tried YAML and JSON): %w", yamlErr)
	}
}

func parseJSON(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid JSON in job descriptor: %w", err)
	}
	return &d, nil
}

func parseYAML(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("invalid YAML in job descriptor: %w", err)
	}
	return &d, nil
}

// toJSON converts the input document to JSON for schema validation.
func toJSON(data []byte, path string) ([]byte, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid JSON in job descriptor: %w", err)
		}
		return data, nil
	case ".yaml", ".yml":
		return yamlToJSON(data)
	default:
		if jsonData, err := yamlToJSON(data); err == nil {
			return jsonData, nil
		}
		var raw any
		if err := json.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("job descriptor is neither valid YAML nor valid JSON: %w", err)
		}
		return data, nil
	}
}

func yamlToJSON(data []byte) ([]byte, error) {
	var raw any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid YAML in job descriptor: %w", err)
	}
	jsonData, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to convert YAML job descriptor to JSON: %w", err)
	}
	return jsonData, nil
}

// Package manifest provides loading and validation of inklift job
// manifests.
//
// A job manifest is a YAML file describing one submission: the remote
// workflow to run, the target region, field overrides, and optional
// input files to upload first.
//
// Example manifest:
//
//	version: "1.0"
//	workflow_id: "wf-portrait-upscale"
//	region: global
//	inputs:
//	  - path: ./photo.png
//	    node_id: "12"
//	    field_name: image
//	overrides:
//	  - node_id: "20"
//	    field_name: steps
//	    field_value: 30
package manifest

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/inklift/inklift/pkg/provider"
)

// Manifest is a validated job manifest.
type Manifest struct {
	// Version is the manifest schema version. Must be "1.0".
	Version string `yaml:"version"`

	// WorkflowID names the stored remote workflow to run (required).
	WorkflowID string `yaml:"workflow_id"`

	// Region selects the provider deployment. Optional; unknown or
	// absent values fall back to the configured default region.
	Region string `yaml:"region,omitempty"`

	// Inputs are local files to upload before submission. Each upload's
	// returned file reference is patched into the named node field.
	Inputs []Input `yaml:"inputs,omitempty"`

	// Overrides are Advanced-mode field patches. Values may be YAML
	// scalars of any type; they are coerced to strings on the wire.
	Overrides []Override `yaml:"overrides,omitempty"`
}

// Input is a local file fed into a workflow node.
type Input struct {
	Path      string `yaml:"path"`
	NodeID    string `yaml:"node_id"`
	FieldName string `yaml:"field_name"`
}

// Override is one manifest-level field patch. FieldValue is deliberately
// loose-typed here; coercion happens in FieldOverrides.
type Override struct {
	NodeID     string `yaml:"node_id"`
	FieldName  string `yaml:"field_name"`
	FieldValue any    `yaml:"field_value"`
}

// Load reads and validates a manifest from path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("manifest file not found: %s", path)
		}
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return LoadFromBytes(data)
}

// LoadFromBytes parses and validates a manifest from raw YAML.
func LoadFromBytes(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest file is empty")
	}

	var m Manifest
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks required fields and structural consistency.
func (m *Manifest) Validate() error {
	if m.Version != "1.0" {
		return fmt.Errorf("unsupported manifest version %q (want \"1.0\")", m.Version)
	}
	if m.WorkflowID == "" {
		return fmt.Errorf("workflow_id is required")
	}
	for i, in := range m.Inputs {
		if in.Path == "" {
			return fmt.Errorf("inputs[%d]: path is required", i)
		}
		if in.NodeID == "" || in.FieldName == "" {
			return fmt.Errorf("inputs[%d]: node_id and field_name are required", i)
		}
	}
	for i, o := range m.Overrides {
		if o.NodeID == "" || o.FieldName == "" {
			return fmt.Errorf("overrides[%d]: node_id and field_name are required", i)
		}
	}
	return nil
}

// FieldOverrides converts the manifest overrides to wire overrides, with
// every value coerced to its string form.
func (m *Manifest) FieldOverrides() []provider.FieldOverride {
	if len(m.Overrides) == 0 {
		return nil
	}
	out := make([]provider.FieldOverride, 0, len(m.Overrides))
	for _, o := range m.Overrides {
		out = append(out, provider.NewFieldOverride(o.NodeID, o.FieldName, o.FieldValue))
	}
	return out
}

package cartridge

import "sigs.k8s.io/yaml"

// PipelineDoc is the decoded form of a PIPELINE section: a named sequence
// of program entry points plus the tensor bindings a host must supply
// before running each stage. It is deliberately a thin description format,
// not an executable one — stages still run through the PROGRAM section's
// task table.
type PipelineDoc struct {
	Name   string          `json:"name"`
	Stages []PipelineStage `json:"stages"`
}

// PipelineStage names one program to run and the host-provided bindings
// it expects.
type PipelineStage struct {
	Entry    string            `json:"entry"`
	Bindings map[string]string `json:"bindings,omitempty"`
}

// DecodePipeline parses a PIPELINE section's bytes. The section stores
// YAML (sigs.k8s.io/yaml round-trips through JSON tags, so the same
// struct also serializes cleanly to JSON for tooling).
func DecodePipeline(data []byte) (*PipelineDoc, error) {
	var doc PipelineDoc
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

// EncodePipeline serializes a PipelineDoc back to the PIPELINE section's
// on-disk YAML form.
func EncodePipeline(doc *PipelineDoc) ([]byte, error) {
	return yaml.Marshal(doc)
}

// Package metadata assembles and serializes the per-sample metadata
// record: user-supplied annotations merged with facts discovered inside
// the container.
package metadata

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/BradhamLab/oif/pkg/job"
	"github.com/BradhamLab/oif/pkg/oif"
)

// Acquisition holds optional facts read from the container's settings
// document. Empty fields are omitted from the serialized record.
type Acquisition struct {
	CaptureDate   string `json:"capture_date,omitempty"`
	WidthConvert  string `json:"width_convert,omitempty"`
	HeightConvert string `json:"height_convert,omitempty"`
	DepthConvert  string `json:"depth_convert,omitempty"`
}

// Record is the metadata written once per successful extraction.
// Annotation fields are carried verbatim from the job descriptor; the
// counts and basename come from the container, never from the job.
type Record struct {
	Person    string            `json:"person"`
	HPF       float64           `json:"hpf"`
	Treatment string            `json:"treatment"`
	Stains    map[string]string `json:"stains"`

	ChannelCount int    `json:"channel_count"`
	DepthCount   int    `json:"depth_count"`
	Basename     string `json:"basename"`

	Acquisition
}

// Assemble merges a job descriptor with container-discovered facts.
// Pure merge: no I/O, no validation beyond what the job loader already
// did. The stain map is carried as given, whether or not its keys match
// the discovered channel count.
func Assemble(d *job.Descriptor, basename string, axes oif.AxisLayout, acq Acquisition) *Record {
	return &Record{
		Person:       d.Person,
		HPF:          d.HPF,
		Treatment:    d.Treatment,
		Stains:       d.Stains,
		ChannelCount: axes.ChannelCount,
		DepthCount:   axes.DepthCount,
		Basename:     basename,
		Acquisition:  acq,
	}
}

// Serialize encodes the record as indented JSON with a trailing
// newline. Map keys are sorted by the encoder, so output is
// byte-reproducible for identical inputs.
func (r *Record) Serialize() ([]byte, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("serializing metadata record: %w", err)
	}
	return append(data, '\n'), nil
}

// WriteFile serializes the record and writes it to path, overwriting
// any existing file.
func (r *Record) WriteFile(path string) error {
	data, err := r.Serialize()
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing metadata record: %w", err)
	}
	return nil
}

// Package job provides loading and validation of extraction job
// descriptors.
//
// A job descriptor is a JSON or YAML file naming the container to
// extract, the annotation fields to record, and the output root:
//
//	{
//	  "oif_file": "/data/embryo07.oif",
//	  "stains": {"1": "DAPI", "2": "phalloidin"},
//	  "person": "D. Hatch",
//	  "hpf": 24,
//	  "treatment": "control",
//	  "out_dir": "/data/out",
//	  "prefix": ""
//	}
//
// Descriptors are validated against a JSON Schema before the typed
// struct is populated, so unknown keys and wrongly typed values are
// rejected at the boundary rather than surfacing mid-extraction.
package job

// Descriptor is a validated extraction job.
//
// The stain map is keyed by external channel label ("1", "2", ...).
// Keys need not line up with the channels the container actually has;
// extra or missing entries are tolerated and carried into the metadata
// record verbatim.
type Descriptor struct {
	// Schema is an optional JSON Schema reference for editor support.
	Schema string `json:"$schema,omitempty" yaml:"$schema,omitempty"`

	// OIFFile is the path of the container to extract.
	OIFFile string `json:"oif_file" yaml:"oif_file"`

	// Stains maps channel labels to stain names.
	Stains map[string]string `json:"stains" yaml:"stains"`

	// Person is who collected the sample.
	Person string `json:"person" yaml:"person"`

	// HPF is the developmental stage in hours post fertilization.
	HPF float64 `json:"hpf" yaml:"hpf"`

	// Treatment is the treatment the sample was exposed to.
	Treatment string `json:"treatment" yaml:"treatment"`

	// OutDir is the output root for the directory tree.
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// Prefix is prepended to the sample's parent directory name.
	// Optional; defaults to the empty string.
	Prefix string `json:"prefix,omitempty" yaml:"prefix,omitempty"`
}

// ApplyDefaults fills optional fields with their defaults. An empty
// out_dir means the current directory.
func (d *Descriptor) ApplyDefaults() {
	if d.OutDir == "" {
		d.OutDir = "."
	}
}

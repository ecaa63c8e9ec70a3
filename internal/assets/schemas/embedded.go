// Package schemasassets provides embedded JSON schemas for standalone
// binary behavior.
//
// Schemas are embedded at compile time so job validation works in
// installed binaries and library consumers without schema files on
// disk.
package schemasassets

import _ "embed"

// JobSchema is the embedded job-descriptor JSON schema.
//
//go:embed job.schema.json
var JobSchema []byte

// Package datasets provides the embedded MARC definition files.
//
// The bundled datasets cover the tags a cataloger touches most often:
//   - marc_bibliographic.json: leader, control fields, and common
//     bibliographic data fields (1XX through 8XX)
//   - marc_holdings.json: holdings-format fields (852, 866)
//   - marc_fixed_fields.json: character-position layouts for the
//     fixed fields (001, 003, 005, 008)
//
// Usage:
//
//	base, err := kb.Load(datasets.Bundled()...)
//	if err != nil {
//	    return err
//	}
package datasets

import (
	"embed"
	"fmt"

	"github.com/gomarc/marclsp/kb"
)

//go:embed *.json
var files embed.FS

// Names of the bundled dataset files, in load order. Holdings loads
// after bibliographic so its definitions win on shared tags.
var (
	Bibliographic = "marc_bibliographic.json"
	Holdings      = "marc_holdings.json"
	FixedFields   = "marc_fixed_fields.json"
)

// Bundled returns the embedded datasets in load order, ready to pass
// to kb.Load.
func Bundled() []kb.Dataset {
	names := []string{Bibliographic, Holdings, FixedFields}
	out := make([]kb.Dataset, 0, len(names))
	for _, name := range names {
		raw, err := files.ReadFile(name)
		if err != nil {
			// The files are compiled into the binary; a read failure
			// means the build itself is broken.
			panic(fmt.Sprintf("datasets: embedded file %s: %v", name, err))
		}
		out = append(out, kb.Dataset{Name: name, Raw: raw})
	}
	return out
}

// ReadFile returns the raw content of one bundled dataset file.
func ReadFile(name string) ([]byte, error) {
	raw, err := files.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("datasets: read %s: %w", name, err)
	}
	return raw, nil
}

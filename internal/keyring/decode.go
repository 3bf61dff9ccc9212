package keyring

import (
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// ringFile is one YAML document of an import file.
type ringFile struct {
	KeyRings []KeyRing `yaml:"key_rings"`
}

// DecodeRings reads key rings from a YAML stream. Each document holds a
// key_rings list; documents are concatenated in order. Unknown fields
// are an error.
func DecodeRings(r io.Reader) ([]KeyRing, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var rings []KeyRing
	for doc := 1; ; doc++ {
		var f ringFile
		err := dec.Decode(&f)
		if errors.Is(err, io.EOF) {
			return rings, nil
		}
		if err != nil {
			return nil, fmt.Errorf("document %d: %w", doc, err)
		}
		rings = append(rings, f.KeyRings...)
	}
}

package rules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ParseSet decodes one raw rule set from YAML (JSON is valid YAML, so
// JSON documents work too).
func ParseSet(data []byte) (Set, error) {
	var set Set
	if err := yaml.Unmarshal(data, &set); err != nil {
		return Set{}, fmt.Errorf("parsing rule set: %w", err)
	}
	return set, nil
}

// LoadSet reads and decodes a raw rule set from a file.
func LoadSet(path string) (Set, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Set{}, fmt.Errorf("reading rule set %q: %w", path, err)
	}
	set, err := ParseSet(data)
	if err != nil {
		return Set{}, fmt.Errorf("rule set %q: %w", path, err)
	}
	return set, nil
}

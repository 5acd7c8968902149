package caldef

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"
)

// Load reads and validates a definition JSON file.
func Load(path string) (*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return FromJSON(data)
}

// EnsureLoaded is Load with friendlier diagnostics for paths coming from
// user configuration.
func EnsureLoaded(path string) (*Definition, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("empty definition path")
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	if info.IsDir() {
		return nil, fmt.Errorf("definition path %s is a directory", path)
	}
	return Load(path)
}

// FromJSON decodes a definition and applies structural validation. Only the
// shape is checked here; cross-checks against a concrete binary image belong
// to the lint rules.
func FromJSON(data []byte) (*Definition, error) {
	var def Definition
	if err := json.Unmarshal(data, &def); err != nil {
		return nil, err
	}
	if def.Name == "" {
		return nil, errors.New("definition missing name")
	}
	names := make(map[string]struct{}, len(def.Parameters))
	for i := range def.Parameters {
		p := &def.Parameters[i]
		if err := p.validate(i); err != nil {
			return nil, err
		}
		if _, dup := names[p.Name]; dup {
			return nil, fmt.Errorf("parameters[%d]: duplicate name %q", i, p.Name)
		}
		names[p.Name] = struct{}{}
	}
	return &def, nil
}

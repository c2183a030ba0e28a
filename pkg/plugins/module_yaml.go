package plugins

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

func decodeYAMLModule(filename string, data []byte) (*ModuleSource, error) {
	var src ModuleSource

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&src); err != nil {
		if errors.Is(err, io.EOF) {
			return &src, nil
		}
		return nil, fmt.Errorf("failed to parse %s: %w", filename, err)
	}
	return &src, nil
}

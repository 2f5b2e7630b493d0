package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

var ErrConfigNotFound = errors.New("configuration not found")

// LoadEndpoints reads a JSON endpoints file. Fields missing from the file keep
// their production defaults. The result is validated.
func LoadEndpoints(path string) (Endpoints, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Endpoints{}, fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return Endpoints{}, fmt.Errorf("failed to read config file: %w", err)
	}

	e, err := ParseEndpoints(data)
	if err != nil {
		return Endpoints{}, fmt.Errorf("%s: %w", path, err)
	}
	return e, nil
}

// ParseEndpoints decodes JSON over DefaultEndpoints. Unknown fields are
// rejected so typos do not silently fall back to production.
func ParseEndpoints(data []byte) (Endpoints, error) {
	e := DefaultEndpoints()

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&e); err != nil {
		return Endpoints{}, fmt.Errorf("%w: %v", ErrInvalidEndpoints, err)
	}

	if err := e.Validate(); err != nil {
		return Endpoints{}, err
	}
	return e, nil
}

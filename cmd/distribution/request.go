package main

import (
	"bytes"
	"encoding/json"
	"os"

	"distribution/pkg/domain/model"
)

// loadRequest decodes a JSON request document. Unknown fields are rejected so
// that a misspelled key does not silently fall back to a default. The document
// is caller input, so every failure is a validation error on the file flag.
func loadRequest(filePath string, v interface{}) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return model.NewValidationError("file", "cannot be read: "+err.Error())
	}
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return model.NewValidationError("file", "is not a valid request document: "+err.Error())
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

var (
	// ErrModelNotFound indicates the model file does not exist.
	ErrModelNotFound = errors.New("model file not found")

	// ErrMalformedModel indicates the model file exists but is not a valid
	// analyzer document.
	ErrMalformedModel = errors.New("malformed model")
)

// Decode reads a ProjectModel from r.
//
// Outputs:
//
//	ProjectModel - The decoded, normalized model.
//	error - Wraps ErrMalformedModel if the document cannot be decoded.
func Decode(r io.Reader) (ProjectModel, error) {
	var m ProjectModel
	dec := json.NewDecoder(r)
	if err := dec.Decode(&m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedModel, err)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after document", ErrMalformedModel)
	}
	if m == nil {
		m = ProjectModel{}
	}
	return m, nil
}

// Encode writes m to w as indented JSON.
func Encode(w io.Writer, m ProjectModel) error {
	if m == nil {
		m = ProjectModel{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding model: %w", err)
	}
	return nil
}

// Load reads a model from the JSON file at path.
//
// Description:
//
//	A missing file and a malformed file are reported as distinct errors so
//	that callers can keep running with an empty model in either case while
//	telling the user which one happened.
//
// Outputs:
//
//	ProjectModel - The decoded model.
//	error - Wraps ErrModelNotFound or ErrMalformedModel; other I/O errors
//	        are returned wrapped as-is.
func Load(path string) (ProjectModel, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrModelNotFound, path)
		}
		return nil, fmt.Errorf("opening model %s: %w", path, err)
	}
	defer f.Close()

	m, err := Decode(f)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return m, nil
}

// Save writes m to path as indented JSON, replacing any existing file.
func Save(path string, m ProjectModel) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := Encode(f, m); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing %s: %w", path, err)
	}
	return nil
}

// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package snapshot

import (
	"bytes"
	"compress/gzip"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/AleutianAI/classmap/services/classmap/model"
)

// payload is one encoded model ready to store.
type payload struct {
	// blob is gzip(JSON(model)).
	blob []byte

	// modelHash is the SHA256 of the uncompressed JSON.
	modelHash string

	// blobHash is the SHA256 of blob, checked on every read.
	blobHash string
}

// encodeModel serializes pm to compressed JSON.
func encodeModel(pm model.ProjectModel) (*payload, error) {
	raw, err := json.Marshal(pm)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}

	var buf bytes.Buffer
	zw, err := gzip.NewWriterLevel(&buf, gzip.BestCompression)
	if err != nil {
		return nil, fmt.Errorf("encode model: %w", err)
	}
	if _, err := zw.Write(raw); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("compress model: %w", err)
	}

	blob := buf.Bytes()
	return &payload{blob: blob, modelHash: sum(raw), blobHash: sum(blob)}, nil
}

// decodeModel verifies blob against want and decodes it. An empty want
// skips the check.
func decodeModel(blob []byte, want string) (model.ProjectModel, error) {
	if got := sum(blob); want != "" && got != want {
		return nil, fmt.Errorf("%w: content hash %s, recorded %s", ErrCorrupt, got, want)
	}
	zr, err := gzip.NewReader(bytes.NewReader(blob))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	defer zr.Close()

	return model.Decode(zr)
}

func sum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

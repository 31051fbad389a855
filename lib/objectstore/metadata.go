// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"bytes"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/event"
)

// DetectMetadata builds the immutable content descriptor captured at
// ingest. Real format analysis belongs to pipeline stage workers;
// this only combines the caller's MIME hint with a handful of
// unambiguous magic numbers, so the result is a pure function of
// (bytes, hint) and re-ingesting identical content rediscovers
// identical metadata.
func DetectMetadata(data []byte, mimeHint string) event.ContentMetadata {
	meta := event.ContentMetadata{
		MimeType:      mimeHint,
		SizeBytes:     uint64(len(data)),
		HashAlgorithm: cid.Algorithm,
	}
	if meta.MimeType == "" {
		meta.MimeType = sniffMime(data)
	}
	if bytes.HasPrefix(data, []byte("%PDF-")) {
		meta.DetectedFormat = "PDF-" + pdfVersion(data)
		meta.IsEncrypted = bytes.Contains(data, []byte("/Encrypt"))
	}
	return meta
}

func sniffMime(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("%PDF-")):
		return "application/pdf"
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return "image/png"
	case bytes.HasPrefix(data, []byte("PK\x03\x04")):
		return "application/zip"
	case bytes.HasPrefix(data, []byte("\x1f\x8b")):
		return "application/gzip"
	default:
		return "application/octet-stream"
	}
}

// pdfVersion extracts the version digits following the %PDF- header,
// defaulting to 1.4 when the header is malformed.
func pdfVersion(data []byte) string {
	rest := data[len("%PDF-"):]
	end := 0
	for end < len(rest) && end < 8 {
		c := rest[end]
		if (c < '0' || c > '9') && c != '.' {
			break
		}
		end++
	}
	if end == 0 {
		return "1.4"
	}
	return string(rest[:end])
}

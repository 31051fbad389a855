// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package objectstore

import (
	"reflect"
	"testing"
)

func TestDetectMetadataHintWins(t *testing.T) {
	meta := DetectMetadata([]byte("Mock PDF content for ingestion demo"), "application/pdf")
	if meta.MimeType != "application/pdf" {
		t.Errorf("MimeType = %q", meta.MimeType)
	}
	if meta.SizeBytes != 35 {
		t.Errorf("SizeBytes = %d, want 35", meta.SizeBytes)
	}
	if meta.HashAlgorithm != "blake3" {
		t.Errorf("HashAlgorithm = %q", meta.HashAlgorithm)
	}
}

func TestDetectMetadataMagic(t *testing.T) {
	cases := []struct {
		data []byte
		mime string
	}{
		{[]byte("%PDF-1.7\n..."), "application/pdf"},
		{[]byte("\x89PNG\r\n\x1a\nrest"), "image/png"},
		{[]byte("PK\x03\x04zipdata"), "application/zip"},
		{[]byte("plain text"), "application/octet-stream"},
	}
	for _, tc := range cases {
		if meta := DetectMetadata(tc.data, ""); meta.MimeType != tc.mime {
			t.Errorf("DetectMetadata(%q).MimeType = %q, want %q", tc.data[:4], meta.MimeType, tc.mime)
		}
	}
}

func TestDetectMetadataPDFFormat(t *testing.T) {
	meta := DetectMetadata([]byte("%PDF-1.4\n1 0 obj"), "")
	if meta.DetectedFormat != "PDF-1.4" {
		t.Errorf("DetectedFormat = %q, want PDF-1.4", meta.DetectedFormat)
	}
	if meta.IsEncrypted {
		t.Error("plain PDF reported encrypted")
	}

	encrypted := DetectMetadata([]byte("%PDF-1.6\n/Encrypt 5 0 R"), "")
	if !encrypted.IsEncrypted {
		t.Error("PDF with /Encrypt dictionary not reported encrypted")
	}
}

func TestDetectMetadataDeterministic(t *testing.T) {
	data := []byte("%PDF-1.5\ncontent body")
	first := DetectMetadata(data, "application/pdf")
	for i := 0; i < 10; i++ {
		if again := DetectMetadata(data, "application/pdf"); !reflect.DeepEqual(first, again) {
			t.Fatalf("detection differs on iteration %d: %+v vs %+v", i, first, again)
		}
	}
}

package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEvidenceKey(t *testing.T) {
	assert.Equal(t, "evidence/g1/sub-1/0.png", EvidenceKey("g1", "sub-1", 0, "https://cdn.example/a/Shot.PNG"))
	assert.Equal(t, "evidence/g1/sub-1/2.bin", EvidenceKey("g1", "sub-1", 2, "https://cdn.example/a/file"))
}

func TestContentTypeForFilename(t *testing.T) {
	assert.Equal(t, "image/jpeg", ContentTypeForFilename("kill.jpeg"))
	assert.Equal(t, "application/octet-stream", ContentTypeForFilename("notes.txt"))
}

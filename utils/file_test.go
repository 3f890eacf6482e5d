package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "report_2024.pdf", SanitizeFilename("report 2024.pdf"))
	assert.Equal(t, "resume.pdf", SanitizeFilename("../../../resume.pdf"))
	assert.Equal(t, "b_o_k.pdf", SanitizeFilename("b{o}k.pdf"))
}

func TestFileNameWithoutExt(t *testing.T) {
	assert.Equal(t, "report", FileNameWithoutExt("/tmp/docs/report.pdf"))
	assert.Equal(t, "noext", FileNameWithoutExt("noext"))
}

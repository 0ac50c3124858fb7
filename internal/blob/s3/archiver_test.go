package s3blob

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestArchiveKey(t *testing.T) {
	t.Parallel()

	day := time.Date(2024, 3, 15, 0, 0, 0, 0, time.UTC)

	cases := []struct {
		file string
		want string
	}{
		{"/out/terminal/bond_yields_terminal_20240315.csv", "archive/terminal/2024/bond_yields_terminal_20240315.csv"},
		{"/out/nsx/nsx_bonds_20240315.csv", "archive/nsx/2024/nsx_bonds_20240315.csv"},
		{"/out/ijg/ijg_bonds_20240315.csv", "archive/ijg/2024/ijg_bonds_20240315.csv"},
		{"/out/closing/closing_yields_20240315.csv", "archive/closing/2024/closing_yields_20240315.csv"},
		{"/srv/shared/Calculator.xlsx", "archive/misc/2024/Calculator.xlsx"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, archiveKey(day, tc.file), "file %s", tc.file)
	}
}

func TestArchiveKeyPartitionsByYear(t *testing.T) {
	t.Parallel()

	jan := time.Date(2025, 1, 2, 0, 0, 0, 0, time.UTC)
	assert.Equal(t,
		"archive/terminal/2025/bond_yields_terminal_20250102.csv",
		archiveKey(jan, "bond_yields_terminal_20250102.csv"))
}

func TestContentTypeFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "text/csv", contentTypeFor("a/b/nsx_bonds_20240315.csv"))
	assert.Equal(t, "text/csv", contentTypeFor("UPPER.CSV"))
	assert.Equal(t,
		"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet",
		contentTypeFor("Calculator.xlsx"))
	assert.Equal(t, "application/octet-stream", contentTypeFor("notes.txt"))
}

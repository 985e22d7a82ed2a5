package util

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHashUserKey(t *testing.T) {
	id := "user-12345"
	got := HashUserKey(id)
	require.Equal(t, got, HashUserKey(id))
	require.Len(t, got, 64)
	for _, ch := range got {
		if !((ch >= 'a' && ch <= 'f') || (ch >= '0' && ch <= '9')) {
			t.Fatalf("hash contains non-hex character: %c", ch)
		}
	}
}

func TestSanitizeFileName(t *testing.T) {
	got, err := SanitizeFileName("  leases/2024\\lease.pdf ")
	require.NoError(t, err)
	require.Equal(t, "leases_2024_lease.pdf", got)

	_, err = SanitizeFileName("../etc/passwd")
	require.ErrorIs(t, err, ErrInvalidFileName)

	_, err = SanitizeFileName("   ")
	require.ErrorIs(t, err, ErrInvalidFileName)

	long := strings.Repeat("a", 300) + ".docx"
	got, err = SanitizeFileName(long)
	require.NoError(t, err)
	require.Len(t, got, 255)
	require.True(t, strings.HasSuffix(got, ".docx"))
}

func TestFileExtension(t *testing.T) {
	require.Equal(t, ".pdf", FileExtension("Lease.PDF"))
	require.Equal(t, "", FileExtension("README"))
}

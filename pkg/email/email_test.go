package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "housing/pkg/domain-errors"
)

func TestNormalize(t *testing.T) {
	got, err := Normalize("  Amina.Benali@Univ.DZ ")
	require.NoError(t, err)
	assert.Equal(t, "amina.benali@univ.dz", got)

	for _, bad := range []string{"", "no-at-sign", "Amina <amina@univ.dz>", "a@"} {
		_, err := Normalize(bad)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeValidation), bad)
	}
}

func TestDeriveDisplayName(t *testing.T) {
	assert.Equal(t, "Amina Benali", DeriveDisplayName("amina.benali@univ.dz"))
	assert.Equal(t, "Karim", DeriveDisplayName("karim@univ.dz"))
	assert.Equal(t, "Student", DeriveDisplayName("@univ.dz"))
	assert.Equal(t, "John Doe", DeriveDisplayName("john_x-doe@univ.dz"))
}

package domain

import (
	"testing"

	apperrors "session-lab/errors"

	"github.com/stretchr/testify/require"
)

func TestParseIdentity(t *testing.T) {
	req := require.New(t)

	id, err := ParseIdentity("org/alice/v1")
	req.NoError(err)
	req.Equal("org", id.Org)
	req.Equal("alice", id.Namespace)
	req.Equal("v1", id.App)
	req.Equal("org/alice/v1", id.String())

	// Surrounding whitespace is tolerated, the components are not
	trimmed, err := ParseIdentity("  org/alice/v1 ")
	req.NoError(err)
	req.Equal(id, trimmed)
}

func TestParseIdentity_Invalid(t *testing.T) {
	for _, raw := range []string{"", "org", "org/alice", "org/alice/v1/extra", "org//v1", "org/al ice/v1", "/alice/v1"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParseIdentity(raw)
			require.ErrorIs(t, err, apperrors.ErrInvalidIdentity)
		})
	}
}

func TestIdentity_EqualityFollowsStringForm(t *testing.T) {
	req := require.New(t)
	a := MustParseIdentity("org/bob/v1")
	b, err := NewIdentity("org", "bob", "v1")
	req.NoError(err)

	req.Equal(a.String(), b.String())
	req.True(a == b)
	req.NotEqual(a, MustParseIdentity("org/bob/v2"))
}

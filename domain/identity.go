// Package domain contains core concepts of the session overlay.
// This file defines Identity, the structured name of a peer or a channel.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"strings"
	"unicode"

	apperrors "session-lab/errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// Identity names a peer (org/namespace/app) or a group channel.
// Two identities are equal iff their string forms match, so the struct
// is safe to use with == and as a map key.
type Identity struct {
	Org       string `validate:"required,max=64,excludesall=/"`
	Namespace string `validate:"required,max=64,excludesall=/"`
	App       string `validate:"required,max=64,excludesall=/"`
}

func NewIdentity(org, namespace, app string) (Identity, error) {
	id := Identity{Org: org, Namespace: namespace, App: app}
	if err := validate.Struct(id); err != nil {
		return Identity{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidIdentity, err)
	}
	for _, part := range []string{org, namespace, app} {
		if strings.IndexFunc(part, unicode.IsSpace) >= 0 {
			return Identity{}, fmt.Errorf("%w: %q contains whitespace", apperrors.ErrInvalidIdentity, part)
		}
	}
	return id, nil
}

// ParseIdentity reads the "org/namespace/app" form.
func ParseIdentity(s string) (Identity, error) {
	parts := strings.Split(strings.TrimSpace(s), "/")
	if len(parts) != 3 {
		return Identity{}, fmt.Errorf("%w: %q is not org/namespace/app", apperrors.ErrInvalidIdentity, s)
	}
	return NewIdentity(parts[0], parts[1], parts[2])
}

// MustParseIdentity is meant for constants and tests.
func MustParseIdentity(s string) Identity {
	id, err := ParseIdentity(s)
	if err != nil {
		panic(err)
	}
	return id
}

func (i Identity) String() string {
	return i.Org + "/" + i.Namespace + "/" + i.App
}

func (i Identity) IsZero() bool {
	return i == Identity{}
}

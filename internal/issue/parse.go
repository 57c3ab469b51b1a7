package issue

import (
	"errors"
	"fmt"
	"regexp"
)

// ErrInvalidIdentifier is returned when a token does not match any known
// issue-identifier grammar.
var ErrInvalidIdentifier = errors.New("invalid issue identifier")

// Ref is a provider-qualified issue identifier.
type Ref struct {
	Provider Provider
	ID       string // normalized form: "#123" for GitHub, "PROJ-45" for Linear
}

var (
	githubRe = regexp.MustCompile(`^#?(\d+)$`)
	linearRe = regexp.MustCompile(`^([A-Za-z]+)-(\d+)$`)
)

// ParseRef binds a user-supplied token to a provider.
//
//	123, #123 → {github, #123}
//	PROJ-45   → {linear, PROJ-45}
//
// Anything else fails with ErrInvalidIdentifier. This is the sole entry
// point that interprets raw identifier tokens; all other components consume
// the parsed form.
func ParseRef(token string) (Ref, error) {
	if m := githubRe.FindStringSubmatch(token); m != nil {
		return Ref{Provider: ProviderGitHub, ID: "#" + m[1]}, nil
	}
	if m := linearRe.FindStringSubmatch(token); m != nil {
		return Ref{Provider: ProviderLinear, ID: m[1] + "-" + m[2]}, nil
	}
	return Ref{}, fmt.Errorf("%w: %q", ErrInvalidIdentifier, token)
}

// Number returns the numeric part of a GitHub ref ("#123" → "123").
// For Linear refs it returns the identifier unchanged.
func (r Ref) Number() string {
	if r.Provider == ProviderGitHub {
		return r.ID[1:]
	}
	return r.ID
}

func (r Ref) String() string {
	return r.ID
}

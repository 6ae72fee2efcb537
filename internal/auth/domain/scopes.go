package domain

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
)

// Scopes is the tagged scope variant accepted at the HTTP boundary: absent,
// JSON null, a single space-delimited string, or a list of strings. It is
// normalized to one canonical space-separated string before any token is
// built; duplicates are preserved.
type Scopes struct {
	set    bool
	isList bool
	str    string
	list   []string
}

// ErrBadScopes reports a scopes value that is neither string nor list.
var ErrBadScopes = errors.New("domain: scopes must be a string or a list of strings")

// ScopeString builds an explicit string-shaped Scopes, mainly for tests
// and internal callers.
func ScopeString(s string) Scopes { return Scopes{set: true, str: s} }

// ScopeList builds an explicit list-shaped Scopes.
func ScopeList(ss ...string) Scopes { return Scopes{set: true, isList: true, list: ss} }

func (s *Scopes) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*s = Scopes{}
		return nil
	}

	var str string
	if err := json.Unmarshal(b, &str); err == nil {
		*s = Scopes{set: true, str: str}
		return nil
	}

	var list []string
	if err := json.Unmarshal(b, &list); err == nil {
		*s = Scopes{set: true, isList: true, list: list}
		return nil
	}

	return ErrBadScopes
}

// IsZero reports whether no scopes value was supplied.
func (s Scopes) IsZero() bool { return !s.set }

// Normalize returns the canonical space-separated scope string: the default
// scope when unset, a single-space join for lists (input order, duplicates
// kept), and the verbatim string otherwise.
func (s Scopes) Normalize() string {
	switch {
	case !s.set:
		return DefaultScope
	case s.isList:
		return strings.Join(s.list, " ")
	default:
		return s.str
	}
}

package domain_test

import (
	"encoding/json"
	"testing"

	"github.com/sanasol-ws/dualauth/internal/auth/domain"
	"github.com/stretchr/testify/require"
)

func TestScopesNormalize(t *testing.T) {
	cases := []struct {
		name string
		body string
		want string
	}{
		{"absent", `{}`, domain.DefaultScope},
		{"null", `{"scopes":null}`, domain.DefaultScope},
		{"string passthrough", `{"scopes":"hytale:server"}`, "hytale:server"},
		{"string verbatim spacing", `{"scopes":"a  b"}`, "a  b"},
		{"list joined in order", `{"scopes":["hytale:client","hytale:server"]}`, "hytale:client hytale:server"},
		{"list keeps duplicates", `{"scopes":["a","a","b"]}`, "a a b"},
		{"empty list", `{"scopes":[]}`, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var req struct {
				Scopes domain.Scopes `json:"scopes"`
			}
			require.NoError(t, json.Unmarshal([]byte(tc.body), &req))
			require.Equal(t, tc.want, req.Scopes.Normalize())
		})
	}
}

func TestScopesRejectsOtherShapes(t *testing.T) {
	var req struct {
		Scopes domain.Scopes `json:"scopes"`
	}
	err := json.Unmarshal([]byte(`{"scopes":42}`), &req)
	require.Error(t, err)
}

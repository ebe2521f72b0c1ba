package domain

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewIdentifier(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantKey  string
		wantKind Kind
	}{
		{name: "lowercases", input: "NaMe", wantKey: "name"},
		{name: "single quotes", input: "'Name'", wantKey: "name"},
		{name: "double quotes", input: `"name"`, wantKey: "name"},
		{name: "only one pair stripped", input: `""name""`, wantKey: `"name"`},
		{name: "mismatched quotes kept", input: `'name"`, wantKey: `'name"`},
		{name: "lone quote kept", input: `"`, wantKey: `"`},
		{name: "empty", input: "", wantKind: KindEmptyName},
		{name: "empty quoted", input: "''", wantKind: KindEmptyName},
		{name: "empty double quoted", input: `""`, wantKind: KindEmptyName},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			id, err := NewIdentifier(tc.input)
			if tc.wantKind != KindUnknown {
				require.Error(t, err)
				assert.Equal(t, tc.wantKind, KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, id.Key())
			assert.Equal(t, tc.input, id.String())
		})
	}
}

func TestIdentifier_EqualityIgnoresCaseAndQuotes(t *testing.T) {
	a := MustIdentifier("NaMe")
	b := MustIdentifier("'name'")
	c := MustIdentifier(`"name"`)

	assert.True(t, a.Equal(b))
	assert.True(t, b.Equal(c))
	assert.Equal(t, 0, a.Compare(c))
	assert.Equal(t, -1, MustIdentifier("a").Compare(MustIdentifier("B")))
	assert.Equal(t, "NaMe", a.String())
}

func TestMustIdentifier_PanicsOnEmpty(t *testing.T) {
	assert.Panics(t, func() { MustIdentifier("''") })
}

func TestKindOf(t *testing.T) {
	wrapped := fmt.Errorf("ingest: %w", ErrRoleCycle("a", "b"))
	assert.Equal(t, KindRoleCycle, KindOf(wrapped))
	assert.True(t, IsKind(wrapped, KindRoleCycle))
	assert.False(t, IsKind(nil, KindRoleCycle))

	unauth := fmt.Errorf("check: %w", &UnauthorizedError{Principal: "u", Table: "t", Column: "c"})
	assert.Equal(t, KindUnauthorized, KindOf(unauth))
	assert.Equal(t, KindUnknown, KindOf(fmt.Errorf("plain")))
}

func TestErrorNames(t *testing.T) {
	err := ErrAmbiguousColumn("id", []string{"t1", "t2"})
	assert.Equal(t, []string{"id", "t1", "t2"}, err.Names)
	assert.Contains(t, err.Error(), `"id" is ambiguous`)
	assert.Equal(t, "AmbiguousColumn", err.Kind.String())
	assert.True(t, KindIncompatibleMerge.Internal())
	assert.False(t, KindUnauthorized.Internal())
}

func TestStatementType(t *testing.T) {
	assert.Equal(t, "S", StmtSelect.Initial())
	assert.Equal(t, "D", StmtDelete.Initial())
	assert.Equal(t, AccessRead, StmtSelect.RequiredAccess())
	assert.Equal(t, AccessWrite, StmtUpdate.RequiredAccess())
	assert.True(t, IsDML(&Statement{}))
	assert.False(t, IsDML(NewRoleGrant("r", "u")))
}

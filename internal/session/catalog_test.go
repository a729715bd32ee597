package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuiltinCatalog(t *testing.T) {
	cat := Builtin()

	focus, ok := cat.Spec(TypeFocus)
	require.True(t, ok)
	assert.Equal(t, DefaultFocusSeconds, focus.DurationSeconds)

	short, ok := cat.Spec(TypeShortBreak)
	require.True(t, ok)
	assert.Equal(t, DefaultShortBreakSeconds, short.DurationSeconds)

	long, ok := cat.Spec(TypeLongBreak)
	require.True(t, ok)
	assert.Equal(t, DefaultLongBreakSeconds, long.DurationSeconds)

	classic, ok := cat.Flow(FlowClassic)
	require.True(t, ok)
	assert.True(t, classic.AutoAdvance)
	require.Len(t, classic.Steps, 3)
	assert.Equal(t, TypeFocus, classic.Steps[0].Type)
	assert.Equal(t, TypeShortBreak, classic.Steps[1].Type)
	assert.Equal(t, TypeFocus, classic.Steps[2].Type)
}

func TestCatalogLookupMiss(t *testing.T) {
	cat := Builtin()

	_, ok := cat.Spec("meditation")
	assert.False(t, ok)

	_, ok = cat.Flow("deep-work")
	assert.False(t, ok)
}

func TestCatalogMergeOverrides(t *testing.T) {
	user := NewCatalog()
	user.Specs[TypeFocus] = Spec{Type: TypeFocus, DurationSeconds: 50 * 60}
	user.Specs["review"] = Spec{Type: "review", DurationSeconds: 10 * 60}

	merged := Builtin().Merge(user)

	focus, ok := merged.Spec(TypeFocus)
	require.True(t, ok)
	assert.Equal(t, 50*60, focus.DurationSeconds, "user entry overrides the built-in")

	_, ok = merged.Spec("review")
	assert.True(t, ok)

	_, ok = merged.Spec(TypeShortBreak)
	assert.True(t, ok, "built-ins survive the merge")

	// Inputs are not mutated.
	builtin, _ := Builtin().Spec(TypeFocus)
	assert.Equal(t, DefaultFocusSeconds, builtin.DurationSeconds)
}

func TestCatalogSortedListings(t *testing.T) {
	cat := NewCatalog()
	cat.Specs["zeta"] = Spec{Type: "zeta", DurationSeconds: 60}
	cat.Specs["alpha"] = Spec{Type: "alpha", DurationSeconds: 60}
	cat.Flows["b"] = FlowDefinition{ID: "b", Name: "B", Steps: []Spec{{Type: "alpha", DurationSeconds: 60}}}
	cat.Flows["a"] = FlowDefinition{ID: "a", Name: "A", Steps: []Spec{{Type: "alpha", DurationSeconds: 60}}}

	assert.Equal(t, []string{"alpha", "zeta"}, cat.SpecTypes())
	assert.Equal(t, []string{"a", "b"}, cat.FlowIDs())
}

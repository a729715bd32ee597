package session

import "sort"

// Default durations for the built-in session types, in seconds.
const (
	DefaultFocusSeconds      = 25 * 60
	DefaultShortBreakSeconds = 5 * 60
	DefaultLongBreakSeconds  = 15 * 60
)

// Built-in session type names.
const (
	TypeFocus      = "focus"
	TypeShortBreak = "shortBreak"
	TypeLongBreak  = "longBreak"
)

// FlowClassic is the built-in focus/break/focus flow.
const FlowClassic = "classic"

// Catalog is the configuration the engine consumes: the session-type
// duration table and the flow definitions. Built-in entries are merged
// under user-authored ones, so authored catalogs can override the
// defaults by reusing a name.
type Catalog struct {
	Specs map[string]Spec
	Flows map[string]FlowDefinition
}

// NewCatalog returns an empty catalog with initialized maps.
func NewCatalog() Catalog {
	return Catalog{
		Specs: make(map[string]Spec),
		Flows: make(map[string]FlowDefinition),
	}
}

// Builtin returns the default catalog: classic pomodoro durations and
// the classic focus/break/focus flow.
func Builtin() Catalog {
	focus := Spec{Type: TypeFocus, DurationSeconds: DefaultFocusSeconds}
	short := Spec{Type: TypeShortBreak, DurationSeconds: DefaultShortBreakSeconds}
	long := Spec{Type: TypeLongBreak, DurationSeconds: DefaultLongBreakSeconds}

	return Catalog{
		Specs: map[string]Spec{
			TypeFocus:      focus,
			TypeShortBreak: short,
			TypeLongBreak:  long,
		},
		Flows: map[string]FlowDefinition{
			FlowClassic: {
				ID:          FlowClassic,
				Name:        "Classic Focus",
				AutoAdvance: true,
				Steps:       []Spec{focus, short, focus},
			},
		},
	}
}

// Spec looks up a session type.
func (c Catalog) Spec(sessionType string) (Spec, bool) {
	s, ok := c.Specs[sessionType]
	return s, ok
}

// Flow looks up a flow definition.
func (c Catalog) Flow(flowID string) (FlowDefinition, bool) {
	f, ok := c.Flows[flowID]
	return f, ok
}

// Merge returns a catalog containing both inputs, with entries from
// other taking precedence on name collision. Neither input is mutated.
func (c Catalog) Merge(other Catalog) Catalog {
	merged := NewCatalog()
	for k, v := range c.Specs {
		merged.Specs[k] = v
	}
	for k, v := range c.Flows {
		merged.Flows[k] = v
	}
	for k, v := range other.Specs {
		merged.Specs[k] = v
	}
	for k, v := range other.Flows {
		merged.Flows[k] = v
	}
	return merged
}

// Clone returns a catalog with its own maps. Replacing entries in the
// original afterwards does not affect the clone.
func (c Catalog) Clone() Catalog {
	return NewCatalog().Merge(c)
}

// SpecTypes returns the session type names in sorted order, for
// deterministic listing output.
func (c Catalog) SpecTypes() []string {
	types := make([]string, 0, len(c.Specs))
	for t := range c.Specs {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// FlowIDs returns the flow IDs in sorted order.
func (c Catalog) FlowIDs() []string {
	ids := make([]string, 0, len(c.Flows))
	for id := range c.Flows {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

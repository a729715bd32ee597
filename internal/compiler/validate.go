package compiler

import (
	"fmt"
	"strings"

	"github.com/mue864/solitude-sub000/internal/session"
)

// MaxFlowSteps caps authored flow length. Long enough for any real
// work cycle, short enough that a generated catalog cannot smuggle in
// an unbounded advance queue.
const MaxFlowSteps = 64

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedInput = "E100" // unsupported input type for validation

	// Session spec errors (E101-E109)
	ErrSpecTypeEmpty       = "E101" // session type name required
	ErrSpecDurationInvalid = "E102" // duration must be positive
	ErrSpecKeyMismatch     = "E103" // catalog key disagrees with spec type

	// Flow definition errors (E110-E119)
	ErrFlowIDEmpty        = "E110" // flow id required
	ErrFlowNameEmpty      = "E111" // flow name required
	ErrFlowNoSteps        = "E112" // at least one step required
	ErrFlowTooManySteps   = "E113" // step count above MaxFlowSteps
	ErrFlowStepUnresolved = "E114" // step type missing from catalog
	ErrFlowKeyMismatch    = "E115" // catalog key disagrees with flow id
)

// ValidationError represents a catalog validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates catalog material against schema rules.
// Returns all errors found (does not fail-fast).
// Supports Catalog, Spec, and FlowDefinition types.
//
// CompileCatalog enforces structure; Validate enforces semantics, and
// also covers catalogs built without CUE, such as the scenario
// harness's inline ones.
func Validate(v any) []ValidationError {
	switch in := v.(type) {
	case *session.Catalog:
		return validateCatalog(in)
	case session.Catalog:
		return validateCatalog(&in)
	case *session.Spec:
		return validateSpec(in, "spec")
	case session.Spec:
		return validateSpec(&in, "spec")
	case *session.FlowDefinition:
		return validateFlow(in, "flow", nil)
	case session.FlowDefinition:
		return validateFlow(&in, "flow", nil)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported input type: %T", v),
			Code:    ErrUnsupportedInput,
		}}
	}
}

// validateCatalog validates every spec and flow in the catalog.
// Iteration is sorted so error order is stable across runs.
func validateCatalog(c *session.Catalog) []ValidationError {
	var errs []ValidationError

	for _, typeName := range c.SpecTypes() {
		spec := c.Specs[typeName]
		path := fmt.Sprintf("session.%s", typeName)

		// E103: map key and spec type must agree
		if spec.Type != typeName {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("catalog key %q does not match spec type %q", typeName, spec.Type),
				Code:    ErrSpecKeyMismatch,
			})
		}

		errs = append(errs, validateSpec(&spec, path)...)
	}

	// Step resolution sees authored types layered over built-ins,
	// mirroring how CompileCatalog resolves them
	resolve := session.Builtin().Merge(*c)

	for _, flowID := range c.FlowIDs() {
		def := c.Flows[flowID]
		path := fmt.Sprintf("flow.%s", flowID)

		// E115: map key and flow id must agree
		if def.ID != flowID {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("catalog key %q does not match flow id %q", flowID, def.ID),
				Code:    ErrFlowKeyMismatch,
			})
		}

		errs = append(errs, validateFlow(&def, path, &resolve)...)
	}

	return errs
}

// validateSpec validates a single session type definition.
func validateSpec(spec *session.Spec, path string) []ValidationError {
	var errs []ValidationError

	// E101: type name required
	if strings.TrimSpace(spec.Type) == "" {
		errs = append(errs, ValidationError{
			Field:   path + ".type",
			Message: "session type name is required and must be non-empty",
			Code:    ErrSpecTypeEmpty,
		})
	}

	// E102: duration must be positive
	if spec.DurationSeconds <= 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".durationSeconds",
			Message: fmt.Sprintf("durationSeconds must be positive, got %d", spec.DurationSeconds),
			Code:    ErrSpecDurationInvalid,
		})
	}

	return errs
}

// validateFlow validates a flow definition. When resolve is non-nil,
// step types must also exist in that catalog's spec table.
func validateFlow(def *session.FlowDefinition, path string, resolve *session.Catalog) []ValidationError {
	var errs []ValidationError

	// E110: flow id required
	if strings.TrimSpace(def.ID) == "" {
		errs = append(errs, ValidationError{
			Field:   path + ".id",
			Message: "flow id is required and must be non-empty",
			Code:    ErrFlowIDEmpty,
		})
	}

	// E111: flow name required
	if strings.TrimSpace(def.Name) == "" {
		errs = append(errs, ValidationError{
			Field:   path + ".name",
			Message: "flow name is required and must be non-empty",
			Code:    ErrFlowNameEmpty,
		})
	}

	// E112: at least one step required
	if len(def.Steps) == 0 {
		errs = append(errs, ValidationError{
			Field:   path + ".steps",
			Message: "at least one step is required",
			Code:    ErrFlowNoSteps,
		})
	}

	// E113: step count bounded
	if len(def.Steps) > MaxFlowSteps {
		errs = append(errs, ValidationError{
			Field:   path + ".steps",
			Message: fmt.Sprintf("flow has %d steps, maximum is %d", len(def.Steps), MaxFlowSteps),
			Code:    ErrFlowTooManySteps,
		})
	}

	for i, step := range def.Steps {
		stepPath := fmt.Sprintf("%s.steps[%d]", path, i)

		errs = append(errs, validateSpec(&step, stepPath)...)

		// E114: step type must resolve in the catalog
		if resolve != nil && step.Type != "" {
			if _, ok := resolve.Spec(step.Type); !ok {
				errs = append(errs, ValidationError{
					Field:   stepPath,
					Message: fmt.Sprintf("step references unknown session type %q", step.Type),
					Code:    ErrFlowStepUnresolved,
				})
			}
		}
	}

	return errs
}

package compiler

import (
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/mue864/solitude-sub000/internal/session"
)

// CompileCatalog parses a CUE value into a session catalog.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the catalog root, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`session: deepWork: durationSeconds: 3000`)
//	catalog, err := CompileCatalog(v)
//
// Expected shape:
//
//	session: <type>: { durationSeconds: int }
//	flow: <id>: { name: string, autoAdvance?: bool, steps: [<type>, ...] }
//
// Flow steps name session types; they resolve against the authored
// types first, then the built-ins, so a flow can reference "shortBreak"
// without redefining it. Fields other than session and flow are
// ignored, which leaves room for CUE package decls and helpers.
func CompileCatalog(v cue.Value) (session.Catalog, error) {
	if err := v.Err(); err != nil {
		return session.Catalog{}, formatCUEError(err)
	}

	catalog := session.NewCatalog()

	sessionVal := v.LookupPath(cue.ParsePath("session"))
	if sessionVal.Exists() {
		if err := parseSpecs(sessionVal, catalog); err != nil {
			return session.Catalog{}, err
		}
	}

	flowVal := v.LookupPath(cue.ParsePath("flow"))
	if flowVal.Exists() {
		// Steps resolve against authored types layered over built-ins
		resolve := session.Builtin().Merge(catalog)
		if err := parseFlows(flowVal, resolve, catalog); err != nil {
			return session.Catalog{}, err
		}
	}

	return catalog, nil
}

// parseSpecs extracts session type definitions into the catalog.
func parseSpecs(v cue.Value, catalog session.Catalog) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		typeName := iter.Label()
		typeValue := iter.Value()

		durVal := typeValue.LookupPath(cue.ParsePath("durationSeconds"))
		if !durVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("session.%s.durationSeconds", typeName),
				Message: "durationSeconds is required",
				Pos:     typeValue.Pos(),
			}
		}

		dur, err := durVal.Int64()
		if err != nil {
			return formatCUEError(err)
		}

		catalog.Specs[typeName] = session.Spec{
			Type:            typeName,
			DurationSeconds: int(dur),
		}
	}

	return nil
}

// parseFlows extracts flow definitions into the catalog, resolving
// step type names against the given spec table.
func parseFlows(v cue.Value, resolve, catalog session.Catalog) error {
	iter, err := v.Fields()
	if err != nil {
		return formatCUEError(err)
	}

	for iter.Next() {
		flowID := iter.Label()
		flowValue := iter.Value()

		def := session.FlowDefinition{
			ID: flowID,
			// Holding between steps is opt-in
			AutoAdvance: true,
		}

		nameVal := flowValue.LookupPath(cue.ParsePath("name"))
		if !nameVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("flow.%s.name", flowID),
				Message: "name is required",
				Pos:     flowValue.Pos(),
			}
		}
		name, err := nameVal.String()
		if err != nil {
			return formatCUEError(err)
		}
		def.Name = name

		autoVal := flowValue.LookupPath(cue.ParsePath("autoAdvance"))
		if autoVal.Exists() {
			auto, err := autoVal.Bool()
			if err != nil {
				return formatCUEError(err)
			}
			def.AutoAdvance = auto
		}

		stepsVal := flowValue.LookupPath(cue.ParsePath("steps"))
		if !stepsVal.Exists() {
			return &CompileError{
				Field:   fmt.Sprintf("flow.%s.steps", flowID),
				Message: "steps are required",
				Pos:     flowValue.Pos(),
			}
		}

		stepIter, err := stepsVal.List()
		if err != nil {
			return formatCUEError(err)
		}

		for i := 0; stepIter.Next(); i++ {
			stepVal := stepIter.Value()
			stepType, err := stepVal.String()
			if err != nil {
				return formatCUEError(err)
			}

			spec, ok := resolve.Spec(stepType)
			if !ok {
				return &CompileError{
					Field:   fmt.Sprintf("flow.%s.steps[%d]", flowID, i),
					Message: fmt.Sprintf("unknown session type %q", stepType),
					Pos:     stepVal.Pos(),
				}
			}
			def.Steps = append(def.Steps, spec)
		}

		catalog.Flows[flowID] = def
	}

	return nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}

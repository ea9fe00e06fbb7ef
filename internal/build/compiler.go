package build

import (
	"context"
	"fmt"
	"slices"

	"github.com/conneroisu/pagewith/internal/errors"
)

// Outcome is the result of a single Bundler run. It is exactly one of
// OutcomeSuccess, OutcomeInvocationFailure or OutcomeDiagnosticFailure.
type Outcome interface {
	outcome()
}

// OutcomeSuccess lists the emitted asset files in the order the engine reported them.
type OutcomeSuccess struct {
	Assets []string
}

// OutcomeInvocationFailure means the engine could not run at all.
type OutcomeInvocationFailure struct {
	Err error
}

// OutcomeDiagnosticFailure means the module graph has compile errors.
type OutcomeDiagnosticFailure struct {
	Diagnostics []errors.Diagnostic
}

func (OutcomeSuccess) outcome()           {}
func (OutcomeInvocationFailure) outcome() {}
func (OutcomeDiagnosticFailure) outcome() {}

// Compiler normalizes Bundler outcomes into assets or structured errors.
type Compiler struct {
	bundler Bundler
	output  OutputTarget
}

// NewCompiler creates a compiler that writes emitted files to output.
func NewCompiler(bundler Bundler, output OutputTarget) *Compiler {
	return &Compiler{
		bundler: bundler,
		output:  output,
	}
}

// Compile runs the bundler once for entryPath.
func (c *Compiler) Compile(ctx context.Context, entryPath string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.CompilerInvocation(entryPath, err)
	}

	outcome := derefOutcome(c.bundler.Bundle(ctx, entryPath, c.output))

	switch outcome := outcome.(type) {
	case OutcomeSuccess:
		return slices.Clone(outcome.Assets), nil
	case OutcomeDiagnosticFailure:
		return nil, errors.Compilation(entryPath, outcome.Diagnostics)
	case OutcomeInvocationFailure:
		return nil, errors.CompilerInvocation(entryPath, outcome.Err)
	case nil:
		return nil, errors.CompilerInvocation(entryPath, fmt.Errorf("bundler returned no outcome"))
	default:
		return nil, errors.CompilerInvocation(entryPath, fmt.Errorf("bundler returned unexpected outcome %T", outcome))
	}
}

// derefOutcome turns pointer outcomes into values. A nil pointer becomes a
// nil Outcome.
func derefOutcome(outcome Outcome) Outcome {
	switch o := outcome.(type) {
	case *OutcomeSuccess:
		if o == nil {
			return nil
		}
		return *o
	case *OutcomeDiagnosticFailure:
		if o == nil {
			return nil
		}
		return *o
	case *OutcomeInvocationFailure:
		if o == nil {
			return nil
		}
		return *o
	default:
		return outcome
	}
}

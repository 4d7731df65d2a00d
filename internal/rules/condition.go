package rules

import (
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
)

// conditionEnv declares the variables a rule condition may reference.
// Every variable is derived from the clause text or the contract type so
// that a condition never breaks content-addressed caching.
func conditionEnv() (*cel.Env, error) {
	return cel.NewEnv(
		cel.Variable("text", cel.StringType),
		cel.Variable("clause_type", cel.StringType),
		cel.Variable("contract_type", cel.StringType),
	)
}

// condition is a compiled CEL guard.
type condition struct {
	source  string
	program cel.Program
}

func compileCondition(env *cel.Env, name, expr string) (*condition, error) {
	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("failed to compile condition for rule %s: %w", name, issues.Err())
	}

	if ast.OutputType() != cel.BoolType {
		return nil, fmt.Errorf("rule %s: condition must return bool, got %s", name, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("failed to create program for rule %s: %w", name, err)
	}

	return &condition{source: expr, program: program}, nil
}

// allows evaluates the guard. Evaluation errors count as false: scoring has
// no error path.
func (c *condition) allows(activation map[string]any) bool {
	if c == nil {
		return true
	}
	out, _, err := c.program.Eval(activation)
	if err != nil {
		return false
	}
	b, ok := out.(types.Bool)
	return ok && bool(b)
}

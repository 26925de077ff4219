package wisp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// run interprets source against a fresh interpreter and returns the final
// result, mirroring the teacher's run(expr, input string) (Value, int,
// error) helper but collapsed to wisp's single Interpret entry point.
func run(source string) Outcome {
	interp := NewInterpreter(false, false)
	return interp.Interpret(source)
}

func TestInterpret_DefineAndLookup(t *testing.T) {
	out := run("(define x 42) x")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "42", out.Result.String())
}

func TestInterpret_CarCdr(t *testing.T) {
	t.Run("car", func(t *testing.T) {
		out := run("(car (cons 1 (cons 2 '())))")
		require.Equal(t, OutcomeOK, out.Kind)
		assert.Equal(t, "1", out.Result.String())
	})

	t.Run("cdr", func(t *testing.T) {
		out := run("(cdr (cons 1 (cons 2 '())))")
		require.Equal(t, OutcomeOK, out.Kind)
		assert.Equal(t, "(2)", out.Result.String())
	})
}

func TestInterpret_QuotedList(t *testing.T) {
	t.Run("car of quoted list", func(t *testing.T) {
		out := run("(car '(1 2 3))")
		require.Equal(t, OutcomeOK, out.Kind)
		assert.Equal(t, "1", out.Result.String())
	})

	t.Run("cdr of quoted list", func(t *testing.T) {
		out := run("(cdr '(1 2 3))")
		require.Equal(t, OutcomeOK, out.Kind)
		assert.Equal(t, "(2 3)", out.Result.String())
	})
}

func TestInterpret_LambdaCall(t *testing.T) {
	out := run("((lambda (x y) (cons x y)) 1 2)")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "(1 . 2)", out.Result.String())
}

func TestInterpret_UpvalueCapture(t *testing.T) {
	source := `
		(define make-adder (lambda (n) (lambda (x) (cons (cons n x) x))))
		(define add5 (make-adder 5))
		(add5 10)
	`
	out := run(source)
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "((5 . 10) . 10)", out.Result.String())
}

func TestInterpret_VariadicLambda(t *testing.T) {
	out := run("((lambda args args) 1 2 3)")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "(1 2 3)", out.Result.String())
}

func TestInterpret_DottedTailLambda(t *testing.T) {
	out := run("((lambda (x . rest) rest) 1 2 3)")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "(2 3)", out.Result.String())
}

func TestInterpret_RuntimeErrorOnNonPairCar(t *testing.T) {
	out := run("(car 1)")
	require.Equal(t, OutcomeRuntimeError, out.Kind)
	assert.Contains(t, out.RuntimeErr.Error(), "Operand must be a cons pair")
}

func TestInterpret_ArityMismatchIsRuntimeError(t *testing.T) {
	out := run("((lambda (x y) x) 1)")
	require.Equal(t, OutcomeRuntimeError, out.Kind)
	assert.Contains(t, out.RuntimeErr.Error(), "Expected")
}

func TestInterpret_UndefinedVariableIsRuntimeError(t *testing.T) {
	out := run("never-defined")
	require.Equal(t, OutcomeRuntimeError, out.Kind)
	assert.Contains(t, out.RuntimeErr.Error(), "Undefined variable")
}

func TestInterpret_ParseErrorOnUnterminatedList(t *testing.T) {
	out := run("(define x 1")
	require.Equal(t, OutcomeParseError, out.Kind)
	assert.NotEmpty(t, out.ParseErrors)
}

func TestInterpret_GlobalsPersistAcrossCalls(t *testing.T) {
	interp := NewInterpreter(false, false)

	out := interp.Interpret("(define counter 1) counter")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "1", out.Result.String())

	out = interp.Interpret("counter")
	require.Equal(t, OutcomeOK, out.Kind)
	assert.Equal(t, "1", out.Result.String())
}

package aarch32

import (
	"errors"

	"github.com/mmc28a/vixl/translate"
)

var f = translate.From

var (
	// Label and literal lifetime errors
	ErrLabelBound      = errors.New(f("label already bound"))
	ErrLabelUnbound    = errors.New(f("label not bound"))
	ErrLabelUnresolved = errors.New(f("label has unresolved references"))
	ErrPoolNotEmpty    = errors.New(f("literal pool not empty"))
	ErrLiteralPlaced   = errors.New(f("literal already placed"))

	// Encoding errors
	ErrTargetOutOfRange    = errors.New(f("branch target out of range"))
	ErrImmediateOutOfRange = errors.New(f("immediate out of range"))
	ErrOperandInvalid      = errors.New(f("operand invalid"))
	ErrRegisterInvalid     = errors.New(f("register invalid"))
	ErrConditionInvalid    = errors.New(f("condition invalid"))
	ErrInstructionSet      = errors.New(f("not available in this instruction set"))

	// Macro layer invariants
	ErrRecursionLimit       = errors.New(f("macro recursion limit exceeded"))
	ErrMacroForbidden       = errors.New(f("macro instructions forbidden in this scope"))
	ErrInsideITBlock        = errors.New(f("macro instruction inside IT block"))
	ErrOutsideITBlock       = errors.New(f("conditional narrow instruction outside IT block"))
	ErrScopeSize            = errors.New(f("scope emitted more than the reserved size"))
	ErrScratchExhausted     = errors.New(f("no scratch register available"))
	ErrScratchNotHeld       = errors.New(f("register is not an acquired scratch"))
	ErrUnhandledInstruction = errors.New(f("instruction form not handled"))

	// Jump table errors
	ErrCaseIndex      = errors.New(f("case index out of range"))
	ErrTableWidth     = errors.New(f("unsupported jump table offset width"))
	ErrTableNotPlaced = errors.New(f("jump table not placed"))
)

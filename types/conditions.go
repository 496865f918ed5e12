package types

import "fmt"

// CouplingCondition tells the solver what to do with one side of a
// fluid-solid face pair.
type CouplingCondition uint8

const (
	CC_None CouplingCondition = iota
	CC_TractionContinuity
	CC_AssembleOnly
	CC_FreeBoundary
)

func (c CouplingCondition) String() string {
	switch c {
	case CC_None:
		return "none"
	case CC_TractionContinuity:
		return "traction"
	case CC_AssembleOnly:
		return "assemble"
	case CC_FreeBoundary:
		return "free"
	}
	return fmt.Sprintf("CouplingCondition(%d)", c)
}

// FluidBoundary is one of the two fluid-solid discontinuities.
type FluidBoundary uint8

const (
	CMB FluidBoundary = iota
	ICB
)

func (b FluidBoundary) String() string {
	if b == CMB {
		return "CMB"
	}
	return "ICB"
}

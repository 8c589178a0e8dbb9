package aarch32

// Condition is an AArch32 condition code.
type Condition int

//go:generate go tool stringer -linecomment -type=Condition
const (
	EQ = Condition(0)  // eq
	NE = Condition(1)  // ne
	CS = Condition(2)  // cs
	CC = Condition(3)  // cc
	MI = Condition(4)  // mi
	PL = Condition(5)  // pl
	VS = Condition(6)  // vs
	VC = Condition(7)  // vc
	HI = Condition(8)  // hi
	LS = Condition(9)  // ls
	GE = Condition(10) // ge
	LT = Condition(11) // lt
	GT = Condition(12) // gt
	LE = Condition(13) // le
	AL = Condition(14) // al
)

// IsValid returns true for the 15 architected condition codes.
func (c Condition) IsValid() bool {
	return c >= EQ && c <= AL
}

// Is returns true when both conditions are the same code.
func (c Condition) Is(other Condition) bool { return c == other }

// IsAlways returns true for the unconditional code.
func (c Condition) IsAlways() bool { return c == AL }

// Negate returns the inverse condition. AL has no inverse.
func (c Condition) Negate() Condition {
	if !c.IsValid() || c.IsAlways() {
		panic(ErrConditionInvalid)
	}
	return c ^ 1
}

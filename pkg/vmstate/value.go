// Package vmstate holds the VM's data model: the heap, call stack,
// closure environments, path conditions, and the single counter that
// mints every fresh name in a run (spec.md §3).
package vmstate

import (
	"fmt"
	"strconv"
	"strings"
)

// Value is anything a register, local, field, or index can hold: None,
// a Bool, a Number, a String, an Address (a heap or closure-env
// reference), or a *Symbolic.
type Value any

// NoneType is the concrete type of the language-neutral null value.
type NoneType struct{}

func (NoneType) String() string { return "None" }

// None is the singleton null value.
var None Value = NoneType{}

// Bool wraps a Go bool so it is distinguishable in a Value type switch
// from the canonical-literal strings "True"/"False".
type Bool bool

// Number is a concrete numeric value. spec.md §6 encodes numbers as
// decimal with "." for fractional, so a single float64 covers both
// integer and fractional literals; operations that need integer
// semantics (the int built-in, "//", "%", and the bitwise operators)
// truncate explicitly.
type Number float64

// Address is a heap or closure-environment reference: "obj_N", "arr_N",
// or "env_N".
type Address string

// Symbolic is an opaque stand-in for an unknown value: a unique name, an
// optional type hint, and the ordered constraints accumulated on it.
// Two Symbolic values are equal iff their Names are equal (spec.md §3).
type Symbolic struct {
	Name        string
	TypeHint    string
	Constraints []string
}

// WithConstraint returns a copy of s with constraint appended. Symbolic
// values are treated as immutable once minted; constraint accumulation
// produces a new value rather than mutating the original in place, so
// that aliased references to the same symbolic elsewhere in the state
// are unaffected unless the applier explicitly rewrites them.
func (s *Symbolic) WithConstraint(constraint string) *Symbolic {
	next := &Symbolic{Name: s.Name, TypeHint: s.TypeHint}
	next.Constraints = append(append([]string{}, s.Constraints...), constraint)
	return next
}

// Equal implements the spec.md §3 equality rule: name equality only.
func (s *Symbolic) Equal(other *Symbolic) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.Name == other.Name
}

func (s *Symbolic) String() string {
	if s.TypeHint != "" {
		return fmt.Sprintf("%s<%s>", s.Name, s.TypeHint)
	}
	return s.Name
}

// uncomputable is the sentinel produced by the operator evaluator when an
// operation fails at the value level (division by zero, type mismatch,
// ...). It is never stored in the heap or in a register: every producer
// of it immediately promotes it to a fresh Symbolic. It is unexported so
// the only way to observe it is through IsUncomputable, which keeps the
// promotion discipline centralized in exec.
type uncomputableType struct{}

// Uncomputable is the UNCOMPUTABLE sentinel from spec.md §4.3/§9.
var Uncomputable Value = uncomputableType{}

// IsUncomputable reports whether v is the UNCOMPUTABLE sentinel.
func IsUncomputable(v Value) bool {
	_, ok := v.(uncomputableType)
	return ok
}

// FormatValue renders v back into its canonical literal form, the
// inverse of ParseLiteral for concrete values (Symbolic values have no
// literal form; they are never re-serialized as CONST operands).
func FormatValue(v Value) string {
	switch x := v.(type) {
	case NoneType:
		return "None"
	case Bool:
		if x {
			return "True"
		}
		return "False"
	case Number:
		return formatNumber(float64(x))
	case string:
		return strconv.Quote(x)
	case Address:
		return string(x)
	case *Symbolic:
		return x.String()
	default:
		return fmt.Sprintf("%v", x)
	}
}

func formatNumber(n float64) string {
	if n == float64(int64(n)) {
		return strconv.FormatInt(int64(n), 10)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

// ParseLiteral parses a CONST operand's canonical literal encoding
// (spec.md §6) into a Value. Function/class reference strings and
// quoted general strings both come back as plain Go strings; promoting
// a function-reference string to a closure is exec's responsibility
// (spec.md §4.3 CONST semantics), not this package's, since it requires
// frame state this package does not have.
func ParseLiteral(operand string) (Value, error) {
	switch operand {
	case "None":
		return None, nil
	case "True":
		return Bool(true), nil
	case "False":
		return Bool(false), nil
	}
	if strings.HasPrefix(operand, `"`) {
		s, err := strconv.Unquote(operand)
		if err != nil {
			return nil, fmt.Errorf("vmstate: malformed string literal %q: %w", operand, err)
		}
		return s, nil
	}
	if strings.HasPrefix(operand, "<function:") || strings.HasPrefix(operand, "<class:") {
		return operand, nil
	}
	if n, err := strconv.ParseFloat(operand, 64); err == nil {
		return Number(n), nil
	}
	return nil, fmt.Errorf("vmstate: unparseable literal %q", operand)
}

// Truthy coerces v to a boolean per spec.md §4.3 BRANCH_IF / §9's Open
// Question decision: nonzero numbers, nonempty strings and arrays,
// Boolean true, and non-None values are truthy. The canonical literal
// string "False" is falsy even though it is a nonempty string, matching
// the canonical-literal encoding (spec.md §9). heap is consulted for
// array/dict length when v is an Address; it may be nil if v cannot be
// an Address in context.
func Truthy(v Value, heap map[string]*HeapObject) bool {
	switch x := v.(type) {
	case NoneType:
		return false
	case Bool:
		return bool(x)
	case Number:
		return x != 0
	case string:
		if x == "False" {
			return false
		}
		if x == "True" {
			return true
		}
		return x != ""
	case Address:
		if heap == nil {
			return true
		}
		obj, ok := heap[string(x)]
		if !ok {
			return true
		}
		return len(obj.Fields) > 0
	case *Symbolic:
		// Symbolic conditions are handled by BRANCH_IF's own branch before
		// Truthy is ever called; reaching here would be a caller bug, but
		// default to truthy rather than panicking mid-run.
		return true
	default:
		return v != nil
	}
}

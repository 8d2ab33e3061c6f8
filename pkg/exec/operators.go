package exec

import (
	"fmt"
	"strings"

	"github.com/vexec/vexec/pkg/vmstate"
)

// evalBinop evaluates a concrete BINOP. Both lhs and rhs are assumed
// already resolved and non-symbolic; the caller (step.go) is responsible
// for the symbolic short-circuit described in spec.md §4.3 BINOP. It
// returns vmstate.Uncomputable for division/modulo by zero or any
// operator applied to incompatible concrete types, never an error: value-
// level failure is not a VM-fatal condition (spec.md §7).
func evalBinop(op string, lhs, rhs vmstate.Value) vmstate.Value {
	switch op {
	case "+":
		if ls, ok := lhs.(string); ok {
			if rs, ok := rhs.(string); ok {
				return ls + rs
			}
			return vmstate.Uncomputable
		}
		return numericBinop(op, lhs, rhs)
	case "-", "*", "/", "//", "%", "**":
		return numericBinop(op, lhs, rhs)
	case "<", "<=", ">", ">=":
		return comparisonBinop(op, lhs, rhs)
	case "==":
		return vmstate.Bool(valuesEqual(lhs, rhs))
	case "!=":
		return vmstate.Bool(!valuesEqual(lhs, rhs))
	case "and":
		return vmstate.Bool(vmstate.Truthy(lhs, nil) && vmstate.Truthy(rhs, nil))
	case "or":
		return vmstate.Bool(vmstate.Truthy(lhs, nil) || vmstate.Truthy(rhs, nil))
	case "&", "|", "^", "<<", ">>":
		return bitwiseBinop(op, lhs, rhs)
	default:
		return vmstate.Uncomputable
	}
}

func numericBinop(op string, lhs, rhs vmstate.Value) vmstate.Value {
	l, ok := lhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	r, ok := rhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	switch op {
	case "+":
		return l + r
	case "-":
		return l - r
	case "*":
		return l * r
	case "/":
		if r == 0 {
			return vmstate.Uncomputable
		}
		return l / r
	case "//":
		if r == 0 {
			return vmstate.Uncomputable
		}
		return vmstate.Number(float64(int64(l) / int64(r)))
	case "%":
		if r == 0 {
			return vmstate.Uncomputable
		}
		return vmstate.Number(float64(int64(l) % int64(r)))
	case "**":
		return pow(l, r)
	default:
		return vmstate.Uncomputable
	}
}

func pow(base, exp vmstate.Number) vmstate.Value {
	if exp < 0 {
		return vmstate.Uncomputable
	}
	result := vmstate.Number(1)
	for i := vmstate.Number(0); i < exp; i++ {
		result *= base
	}
	return result
}

func comparisonBinop(op string, lhs, rhs vmstate.Value) vmstate.Value {
	l, ok := lhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	r, ok := rhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	switch op {
	case "<":
		return vmstate.Bool(l < r)
	case "<=":
		return vmstate.Bool(l <= r)
	case ">":
		return vmstate.Bool(l > r)
	case ">=":
		return vmstate.Bool(l >= r)
	default:
		return vmstate.Uncomputable
	}
}

func bitwiseBinop(op string, lhs, rhs vmstate.Value) vmstate.Value {
	l, ok := lhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	r, ok := rhs.(vmstate.Number)
	if !ok {
		return vmstate.Uncomputable
	}
	li, ri := int64(l), int64(r)
	switch op {
	case "&":
		return vmstate.Number(float64(li & ri))
	case "|":
		return vmstate.Number(float64(li | ri))
	case "^":
		return vmstate.Number(float64(li ^ ri))
	case "<<":
		return vmstate.Number(float64(li << uint(ri)))
	case ">>":
		return vmstate.Number(float64(li >> uint(ri)))
	default:
		return vmstate.Uncomputable
	}
}

func valuesEqual(lhs, rhs vmstate.Value) bool {
	switch l := lhs.(type) {
	case vmstate.Number:
		r, ok := rhs.(vmstate.Number)
		return ok && l == r
	case vmstate.Bool:
		r, ok := rhs.(vmstate.Bool)
		return ok && l == r
	case string:
		r, ok := rhs.(string)
		return ok && l == r
	case vmstate.Address:
		r, ok := rhs.(vmstate.Address)
		return ok && l == r
	case vmstate.NoneType:
		_, ok := rhs.(vmstate.NoneType)
		return ok
	default:
		return false
	}
}

// evalUnop evaluates a concrete UNOP; same UNCOMPUTABLE discipline as
// evalBinop.
func evalUnop(op string, arg vmstate.Value) vmstate.Value {
	switch op {
	case "-":
		n, ok := arg.(vmstate.Number)
		if !ok {
			return vmstate.Uncomputable
		}
		return -n
	case "not":
		return vmstate.Bool(!vmstate.Truthy(arg, nil))
	case "~":
		n, ok := arg.(vmstate.Number)
		if !ok {
			return vmstate.Uncomputable
		}
		return vmstate.Number(float64(^int64(n)))
	default:
		return vmstate.Uncomputable
	}
}

// exprFormat renders a value for inclusion in a constraint or call-
// expression string: a *Symbolic renders as its bare name (spec.md §8
// scenario 3's "process(sym_0)", scenario 4's "sym_0 > 0" — never the
// "name<hint>" form vmstate.FormatValue uses for diagnostic printing).
func exprFormat(v vmstate.Value) string {
	if sym, ok := v.(*vmstate.Symbolic); ok {
		return sym.Name
	}
	return vmstate.FormatValue(v)
}

// binopExpr and unopExpr render the human-readable constraint string
// minted alongside a symbolic promotion (spec.md §4.3 BINOP/UNOP: "mint a
// fresh symbolic whose single constraint describes the expression").
func binopExpr(op string, lhs, rhs vmstate.Value) string {
	return fmt.Sprintf("%s %s %s", exprFormat(lhs), op, exprFormat(rhs))
}

func unopExpr(op string, arg vmstate.Value) string {
	if op == "not" {
		return strings.TrimSpace("not " + exprFormat(arg))
	}
	return op + exprFormat(arg)
}

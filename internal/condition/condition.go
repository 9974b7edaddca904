// Package condition evaluates boolean condition trees against evaluation
// state. Nodes are combined left to right by their coordinator — there is
// no precedence or grouping; evaluation is a left fold seeded by the first
// node's result.
//
// Evaluate returns an explicit error instead of panicking when a node
// cannot be computed (absent value where a collection is required, a
// non-date where a date comparison is required). Callers that want the
// original permissive behaviour coerce errors to false with
// EvaluateOrFalse — that lossiness is a policy decision made at the call
// boundary, not inside the evaluator.
package condition

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/matthewbaird/formflow/internal/types"
)

// EvalError reports a node that could not be evaluated.
type EvalError struct {
	Condition string
	Node      int
	Reason    string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("condition %q node %d: %s", e.Condition, e.Node, e.Reason)
}

// Evaluate folds the condition's nodes left to right against evalState.
// Relative date values resolve against now.
func Evaluate(c types.Condition, evalState map[string]any, now time.Time) (bool, error) {
	if len(c.Nodes) == 0 {
		return false, &EvalError{Condition: c.Name, Node: 0, Reason: "no nodes"}
	}

	result, err := evalNode(c, 0, evalState, now)
	if err != nil {
		return false, err
	}
	for i := 1; i < len(c.Nodes); i++ {
		r, err := evalNode(c, i, evalState, now)
		if err != nil {
			return false, err
		}
		switch c.Nodes[i].Coordinator {
		case types.CoordinatorOr:
			result = result || r
		default:
			// Missing coordinators behave as "and".
			result = result && r
		}
	}
	return result, nil
}

// EvaluateOrFalse coerces evaluation errors to false. Note the documented
// consequence: "does not contain" against an absent collection comes out
// false here, not vacuously true, because the absence is an evaluation
// error and errors are swallowed at this boundary.
func EvaluateOrFalse(c types.Condition, evalState map[string]any, now time.Time) bool {
	ok, err := Evaluate(c, evalState, now)
	if err != nil {
		return false
	}
	return ok
}

func evalNode(c types.Condition, i int, evalState map[string]any, now time.Time) (bool, error) {
	node := c.Nodes[i]
	actual := lookup(evalState, node.Field.Name)

	fail := func(format string, args ...any) (bool, error) {
		return false, &EvalError{Condition: c.Name, Node: i, Reason: fmt.Sprintf(format, args...)}
	}

	switch node.Operator {
	case types.OpIs:
		return looseEqual(actual, node.Value.Value), nil
	case types.OpIsNot:
		return !looseEqual(actual, node.Value.Value), nil

	case types.OpContains, types.OpDoesNotContain:
		items, ok := actual.([]any)
		if !ok {
			return fail("field %q is not a collection", node.Field.Name)
		}
		found := false
		for _, v := range items {
			if looseEqual(v, node.Value.Value) {
				found = true
				break
			}
		}
		if node.Operator == types.OpContains {
			return found, nil
		}
		return !found, nil

	case types.OpIsMoreThan, types.OpIsLessThan:
		return compareNode(node, actual, now, fail)

	default:
		return fail("unknown operator %q", node.Operator)
	}
}

func compareNode(node types.ConditionNode, actual any, now time.Time, fail func(string, ...any) (bool, error)) (bool, error) {
	more := node.Operator == types.OpIsMoreThan

	if node.Value.Type == types.ValueKindRelativeDate {
		t, ok := parseDate(actual)
		if !ok {
			return fail("field %q is not a date", node.Field.Name)
		}
		cutoff := node.Value.Resolve(now)
		// "more than N units in the past" means older than the cutoff;
		// "more than N units in the future" means beyond it.
		if node.Value.Direction == types.DirectionPast {
			if more {
				return t.Before(cutoff), nil
			}
			return t.After(cutoff), nil
		}
		if more {
			return t.After(cutoff), nil
		}
		return t.Before(cutoff), nil
	}

	// Literal comparisons: numeric when both sides are numbers, date when
	// both sides parse as dates.
	if an, ok := asNumber(actual); ok {
		if en, err := strconv.ParseFloat(strings.TrimSpace(node.Value.Value), 64); err == nil {
			if more {
				return an > en, nil
			}
			return an < en, nil
		}
	}
	if at, ok := parseDate(actual); ok {
		if et, ok := parseDate(node.Value.Value); ok {
			if more {
				return at.After(et), nil
			}
			return at.Before(et), nil
		}
	}
	return fail("field %q is not comparable to %q", node.Field.Name, node.Value.Value)
}

// lookup resolves a field reference in evaluation state. A dot-qualified
// name ("section.field") reaches one level into a section map.
func lookup(evalState map[string]any, name string) any {
	if evalState == nil {
		return nil
	}
	if section, rest, ok := strings.Cut(name, "."); ok {
		if nested, ok := evalState[section].(map[string]any); ok {
			return nested[rest]
		}
		return nil
	}
	return evalState[name]
}

// looseEqual compares an evaluation value against a literal the way the
// original engine does: numbers numerically, everything else by string
// form. nil never equals a non-empty literal.
func looseEqual(actual any, expected string) bool {
	if actual == nil {
		return expected == ""
	}
	if an, ok := asNumber(actual); ok {
		if en, err := strconv.ParseFloat(strings.TrimSpace(expected), 64); err == nil {
			return an == en
		}
	}
	return asString(actual) == expected
}

func asString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case bool:
		return strconv.FormatBool(s)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	default:
		return fmt.Sprint(s)
	}
}

func asNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	default:
		return 0, false
	}
}

// parseDate accepts ISO date strings, the month-year form, and time values.
func parseDate(v any) (time.Time, bool) {
	switch d := v.(type) {
	case time.Time:
		return d, true
	case string:
		for _, layout := range []string{"2006-01-02", "2006-01", time.RFC3339} {
			if t, err := time.Parse(layout, d); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

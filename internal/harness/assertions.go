package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/phonebridge/internal/diag"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Trace    []string // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFull trace:\n")
	for i, line := range e.Trace {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, line)
	}

	return buf.String()
}

// assertTraceContains checks that some trace line contains the text.
func assertTraceContains(trace []string, assertion Assertion) error {
	if firstLine(trace, assertion.Text, 0) >= 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: fmt.Sprintf("a line containing %q", assertion.Text),
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks that lines containing each text appear in order.
// Lines need not be consecutive (intervening lines are allowed).
func assertTraceOrder(trace []string, assertion Assertion) error {
	from := 0
	for i, text := range assertion.Texts {
		at := firstLine(trace, text, from)
		if at < 0 {
			actual := fmt.Sprintf("missing: %q", text)
			if i > 0 {
				actual = fmt.Sprintf("%q not found after %q", text, assertion.Texts[i-1])
			}
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("lines in order: %q", assertion.Texts),
				Actual:   actual,
				Trace:    trace,
			}
		}
		from = at + 1
	}
	return nil
}

// assertTraceCount checks that exactly Count lines contain the text.
func assertTraceCount(trace []string, assertion Assertion) error {
	count := 0
	for _, line := range trace {
		if strings.Contains(line, assertion.Text) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d lines containing %q", assertion.Count, assertion.Text),
			Actual:   fmt.Sprintf("%d lines", count),
			Trace:    trace,
		}
	}
	return nil
}

// assertDiagCount checks how many diagnostics of a kind were recorded.
func assertDiagCount(result *Result, assertion Assertion) error {
	count := 0
	for _, d := range result.Diagnostics {
		if d.Kind == diag.Kind(assertion.Kind) {
			count++
		}
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertDiagCount,
			Expected: fmt.Sprintf("%d %s diagnostics", assertion.Count, assertion.Kind),
			Actual:   fmt.Sprintf("%d recorded", count),
			Trace:    result.Trace,
		}
	}
	return nil
}

func firstLine(trace []string, text string, from int) int {
	for i := from; i < len(trace); i++ {
		if strings.Contains(trace[i], text) {
			return i
		}
	}
	return -1
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, assertion)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, assertion)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, assertion)
		case AssertDiagCount:
			err = assertDiagCount(result, assertion)
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}

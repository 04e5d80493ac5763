package harness

import (
	"fmt"
	"slices"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It lists the answers that were produced to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Answers  []Row  // Every answer for context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nAnswers:\n")
	for i, row := range e.Answers {
		fmt.Fprintf(&buf, "  [%d] %s\n", i+1, row)
	}
	return buf.String()
}

// EvaluateAssertions runs every assertion against the result and returns
// the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertContains:
			err = assertContains(result, a)
		case AssertExcludes:
			err = assertExcludes(result, a)
		case AssertInferredBy:
			err = assertInferredBy(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d (%s): %v", i, a.Type, err))
		}
	}
	return errs
}

// assertContains checks that some answer matches the assertion row
// (subset semantics).
func assertContains(result *Result, a Assertion) error {
	for _, ans := range result.Answers {
		if ans.Row.matches(a.Answer) {
			return nil
		}
	}
	return &AssertionError{
		Type:     AssertContains,
		Expected: fmt.Sprintf("an answer matching %s", Row(a.Answer)),
		Actual:   "no matching answer",
		Answers:  result.Rows(),
	}
}

// assertExcludes checks that no answer matches the assertion row.
func assertExcludes(result *Result, a Assertion) error {
	for _, ans := range result.Answers {
		if ans.Row.matches(a.Answer) {
			return &AssertionError{
				Type:     AssertExcludes,
				Expected: fmt.Sprintf("no answer matching %s", Row(a.Answer)),
				Actual:   fmt.Sprintf("found %s", ans.Row),
				Answers:  result.Rows(),
			}
		}
	}
	return nil
}

// assertInferredBy checks that some answer matching the row was derived
// through the named rule.
func assertInferredBy(result *Result, a Assertion) error {
	var seen []string
	matched := false
	for _, ans := range result.Answers {
		if !ans.Row.matches(a.Answer) {
			continue
		}
		if slices.Contains(ans.Rules, a.Rule) {
			return nil
		}
		matched = true
		seen = append(seen, ans.Rules...)
	}
	actual := "no matching answer"
	if matched {
		slices.Sort(seen)
		actual = fmt.Sprintf("matching answers derived by %v", slices.Compact(seen))
	}
	return &AssertionError{
		Type:     AssertInferredBy,
		Expected: fmt.Sprintf("%s derived by rule %s", Row(a.Answer), a.Rule),
		Actual:   actual,
		Answers:  result.Rows(),
	}
}

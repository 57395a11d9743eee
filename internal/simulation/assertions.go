package simulation

import (
	"math"
	"slices"
	"testing"
)

// stepAt returns step i of result, failing the test when it does not exist.
func stepAt(t *testing.T, result *Result, i int) (StepResult, bool) {
	t.Helper()
	if i < 0 || i >= len(result.Steps) {
		t.Errorf("step %d out of range (experiment %q has %d steps)", i, result.Name, len(result.Steps))
		return StepResult{}, false
	}
	return result.Steps[i], true
}

// AssertOutputCount asserts how many times output fired during a step.
func AssertOutputCount(t *testing.T, result *Result, step, output, want int) {
	t.Helper()
	sr, ok := stepAt(t, result, step)
	if !ok {
		return
	}
	if output < 0 || output >= len(sr.OutputCounts) {
		t.Errorf("AssertOutputCount: step %d: output %d out of range", step, output)
		return
	}
	if got := sr.OutputCounts[output]; got != want {
		t.Errorf("AssertOutputCount: step %d: output %d fired %d times, want %d", step, output, got, want)
	}
}

// AssertOutputFiresAt asserts the global timestep of an output's last fire
// during a step.
func AssertOutputFiresAt(t *testing.T, result *Result, step, output int, at float64) {
	t.Helper()
	sr, ok := stepAt(t, result, step)
	if !ok {
		return
	}
	if got := sr.OutputFireTime(output); got != at {
		t.Errorf("AssertOutputFiresAt: step %d: output %d last fired at %g, want %g", step, output, got, at)
	}
}

// AssertOutputSilent asserts that an output did not fire during a step.
func AssertOutputSilent(t *testing.T, result *Result, step, output int) {
	t.Helper()
	sr, ok := stepAt(t, result, step)
	if !ok {
		return
	}
	if got := sr.OutputFireTime(output); got >= 0 {
		t.Errorf("AssertOutputSilent: step %d: output %d fired at %g", step, output, got)
	}
}

// AssertCharge asserts the charge of a node after a step, within tol.
func AssertCharge(t *testing.T, result *Result, step int, node uint32, want, tol float64) {
	t.Helper()
	sr, ok := stepAt(t, result, step)
	if !ok {
		return
	}
	pos, found := slices.BinarySearch(result.NodeIDs, node)
	if !found || pos >= len(sr.NeuronCharges) {
		t.Errorf("AssertCharge: step %d: node %d not in network", step, node)
		return
	}
	if got := sr.NeuronCharges[pos]; math.Abs(got-want) > tol {
		t.Errorf("AssertCharge: step %d: node %d charge %g, want %g (tol %g)", step, node, got, want, tol)
	}
}

// AssertChargesBounded asserts that every charge in every step lies within
// [min, max].
func AssertChargesBounded(t *testing.T, result *Result, min, max float64) {
	t.Helper()
	for _, sr := range result.Steps {
		for i, c := range sr.NeuronCharges {
			if c < min || c > max {
				t.Errorf("AssertChargesBounded: step %d: node %d charge %g not in [%g, %g]", sr.Index, result.NodeIDs[i], c, min, max)
			}
		}
	}
}

// AssertSameOutputs asserts that two results fired the same outputs the
// same number of times at the same steps.
func AssertSameOutputs(t *testing.T, a, b *Result) {
	t.Helper()
	if len(a.Steps) != len(b.Steps) {
		t.Errorf("AssertSameOutputs: %d steps vs %d", len(a.Steps), len(b.Steps))
		return
	}
	for i := range a.Steps {
		sa, sb := a.Steps[i], b.Steps[i]
		if !slices.Equal(sa.OutputCounts, sb.OutputCounts) {
			t.Errorf("AssertSameOutputs: step %d: counts %v vs %v", i, sa.OutputCounts, sb.OutputCounts)
		}
		if !slices.Equal(sa.OutputLastFires, sb.OutputLastFires) {
			t.Errorf("AssertSameOutputs: step %d: last fires %v vs %v", i, sa.OutputLastFires, sb.OutputLastFires)
		}
	}
}

// CountFiringSteps counts the steps in which output fired at least once.
func CountFiringSteps(result *Result, output int) int {
	count := 0
	for _, sr := range result.Steps {
		if output < len(sr.OutputCounts) && sr.OutputCounts[output] > 0 {
			count++
		}
	}
	return count
}

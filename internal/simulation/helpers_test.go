package simulation

import (
	"context"
	"testing"

	"github.com/nvandessel/risp/internal/engine"
	"github.com/nvandessel/risp/internal/processor"
)

func scalarParams() processor.Params {
	return processor.Params{
		MinWeight:    processor.Float(-1),
		MaxWeight:    processor.Float(1),
		MinThreshold: 0,
		MaxThreshold: 1,
		MinPotential: -1,
		MaxDelay:     5,
	}
}

// discreteParams are the integer bounds shared by the scalar and vectorized
// engines in equivalence tests.
func discreteParams(kind engine.Kind) processor.Params {
	p := processor.Params{
		Engine:       kind,
		MinWeight:    processor.Float(-7),
		MaxWeight:    processor.Float(7),
		MinThreshold: 0,
		MaxThreshold: 7,
		MinPotential: -7,
		MaxDelay:     5,
		Discrete:     true,
	}
	if kind == engine.KindVectorized {
		p.TrackedTimesteps = 8
	}
	return p
}

func mustParse(t *testing.T, doc string) *Experiment {
	t.Helper()
	exp, err := ParseExperiment([]byte(doc))
	if err != nil {
		t.Fatalf("ParseExperiment: %v", err)
	}
	return exp
}

// runExperiment parses doc and runs it as network 0 on a fresh processor.
// Params embedded in doc win over params.
func runExperiment(t *testing.T, params processor.Params, doc string) *Result {
	t.Helper()
	exp := mustParse(t, doc)
	proc, err := processor.New(exp.ParamsOr(params))
	if err != nil {
		t.Fatalf("processor.New: %v", err)
	}
	result, err := NewRunner(proc, nil).Run(context.Background(), exp, 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	return result
}

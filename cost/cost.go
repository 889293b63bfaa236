// Package cost prices a training configuration. Estimates are a pure function
// of their inputs so that the editor and any billing check agree exactly.
package cost

import (
	"math"

	"github.com/meikuraledutech/mlgraph/algorithm"
)

// Params is everything a single model's cost depends on.
type Params struct {
	AlgorithmID        string `json:"algorithmId"`
	SampleCount        int    `json:"sampleCount"`
	UseCrossValidation bool   `json:"useCrossValidation"`
	CVFolds            int    `json:"cvFolds"`
	UseAutoTuning      bool   `json:"useAutoTuning"`
	TuningTrials       int    `json:"tuningTrials"`
}

// Estimator prices Params against a registry.
type Estimator struct {
	registry *algorithm.Registry
}

// New returns an Estimator backed by reg.
func New(reg *algorithm.Registry) *Estimator {
	return &Estimator{registry: reg}
}

// Estimate returns the integer cost of training p. Unknown algorithms cost 0.
//
//	total = base + perSample*samples
//	total *= folds                                    (cross-validation on)
//	total += min(trials, maxTrials) * perTrial        (auto-tuning on)
//
// and the result is rounded up.
func (e *Estimator) Estimate(p Params) int {
	d, ok := e.registry.Get(p.AlgorithmID)
	if !ok {
		return 0
	}

	samples := float64(max(p.SampleCount, 0))
	total := d.Cost.Base + d.Cost.PerSample*samples

	if p.UseCrossValidation {
		total *= float64(max(p.CVFolds, 1))
	}

	if p.UseAutoTuning {
		optuna := e.registry.Cost().Optuna
		trials := min(max(p.TuningTrials, 0), optuna.MaxTrials)
		total += float64(trials) * optuna.PerTrial
	}

	return ceil(total)
}

// ceil rounds up after dropping float noise, so 10 + 0.005*1000 is 15 and not 16.
// The tolerance scales with v so any positive total still costs at least 1.
func ceil(v float64) int {
	return int(math.Ceil(v - math.Abs(v)*1e-12))
}

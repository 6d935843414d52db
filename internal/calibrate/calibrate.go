// Package calibrate fits composite-score weights to labeled pages with
// ordinary least squares.
package calibrate

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/attuario-ai/attuario/internal/scoring"
)

// MinExamples is the smallest labeled set the fitter accepts. Below this
// the five-coefficient system is hopelessly underdetermined.
const MinExamples = 5

// ErrInsufficientData is returned when fewer than MinExamples labeled
// pages are supplied.
var ErrInsufficientData = errors.New("not enough labeled examples to calibrate")

// Example pairs a page's component scores with a human-assigned target
// composite in [0, 100].
type Example struct {
	URL        string             `json:"url"`
	Components scoring.Components `json:"components"`
	Target     float64            `json:"target"`
}

// Result carries the fitted weights and the holdout evaluation. The
// weights are the raw least-squares solution: coefficients may be negative,
// and clamping or normalizing is the caller's policy decision.
type Result struct {
	Weights scoring.Weights `json:"weights"`
	MAE     float64         `json:"mae"`
	MSE     float64         `json:"mse"`
	Train   int             `json:"train_examples"`
	Holdout int             `json:"holdout_examples"`
}

// Fit solves for the weight vector minimizing squared error between
// weighted component sums and the targets. The split is deterministic:
// with at least ten examples the last fifth is held out for evaluation,
// otherwise the training set doubles as the evaluation set.
func Fit(examples []Example) (Result, error) {
	if len(examples) < MinExamples {
		return Result{}, fmt.Errorf("%w: got %d, need %d", ErrInsufficientData, len(examples), MinExamples)
	}

	train, holdout := split(examples)

	rows := len(train)
	a := mat.NewDense(rows, 5, nil)
	b := mat.NewVecDense(rows, nil)
	for i, ex := range train {
		a.SetRow(i, ex.Components.Vector())
		b.SetVec(i, ex.Target)
	}

	var qr mat.QR
	qr.Factorize(a)

	var solution mat.VecDense
	if err := qr.SolveVecTo(&solution, false, b); err != nil {
		return Result{}, fmt.Errorf("solve least squares: %w", err)
	}

	weights, err := scoring.WeightsFromVector(solution.RawVector().Data)
	if err != nil {
		return Result{}, err
	}

	mae, mse := evaluate(weights, holdout)
	return Result{
		Weights: weights,
		MAE:     mae,
		MSE:     mse,
		Train:   rows,
		Holdout: len(holdout),
	}, nil
}

func split(examples []Example) (train, holdout []Example) {
	if len(examples) < 10 {
		return examples, examples
	}
	cut := len(examples) - len(examples)/5
	return examples[:cut], examples[cut:]
}

func evaluate(w scoring.Weights, examples []Example) (mae, mse float64) {
	if len(examples) == 0 {
		return 0, 0
	}
	wv := w.Vector()
	for _, ex := range examples {
		predicted := 0.0
		for i, c := range ex.Components.Vector() {
			predicted += c * wv[i]
		}
		diff := predicted - ex.Target
		mae += math.Abs(diff)
		mse += diff * diff
	}
	n := float64(len(examples))
	return mae / n, mse / n
}

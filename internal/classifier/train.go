package classifier

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/gzhole/claudewatch/internal/direction"
	"github.com/gzhole/claudewatch/internal/features"
)

// Options tune training. Zero values pick the defaults.
type Options struct {
	// C is the inverse L2 regularization strength.
	C       float64
	MaxIter int
	Tol     float64
}

func (o Options) withDefaults() Options {
	if o.C <= 0 {
		o.C = 1.0
	}
	if o.MaxIter <= 0 {
		o.MaxIter = 100
	}
	if o.Tol <= 0 {
		o.Tol = 1e-8
	}
	return o
}

// ErrTraining is returned when the data cannot produce a model.
var ErrTraining = errors.New("training failed")

// Fit trains a class-balanced, L2-regularized logistic regression with good
// examples as class 0 and bad as class 1, over the set's directions in order.
func Fit(set *direction.Set, good, bad []features.Map, model string, opts Options) (*Model, error) {
	if len(good) == 0 || len(bad) == 0 {
		return nil, fmt.Errorf("%w: need at least one good and one bad example (got %d/%d)", ErrTraining, len(good), len(bad))
	}

	dirs := set.All()
	m := &Model{
		FormatVersion: FormatVersion,
		TrainedAt:     time.Now().UTC().Format(time.RFC3339),
		Model:         model,
		GoodExamples:  len(good),
		BadExamples:   len(bad),
	}
	for _, d := range dirs {
		m.Features = append(m.Features, Feature{UUID: d.ID, Label: d.Label, Polarity: d.Polarity})
	}

	var rows [][]float64
	var y []float64
	for _, acts := range good {
		rows = append(rows, m.Vector(acts))
		y = append(y, 0)
	}
	for _, acts := range bad {
		rows = append(rows, m.Vector(acts))
		y = append(y, 1)
	}

	w, b, err := fitLogistic(rows, y, opts.withDefaults())
	if err != nil {
		return nil, err
	}
	m.Coefficients = w
	m.Intercept = b
	m.Baseline = means(rows, len(dirs))

	correct := 0
	for i, x := range rows {
		if (m.Probability(x) > 0.5) == (y[i] == 1) {
			correct++
		}
	}
	m.TrainAccuracy = float64(correct) / float64(len(rows))
	return m, nil
}

// fitLogistic runs Newton-Raphson on the penalized, class-weighted log loss.
// The intercept is not penalized.
func fitLogistic(rows [][]float64, y []float64, opts Options) ([]float64, float64, error) {
	n, k := len(rows), 0
	if n > 0 {
		k = len(rows[0])
	}
	d := k + 1

	var pos float64
	for _, v := range y {
		pos += v
	}
	neg := float64(n) - pos
	weight := func(label float64) float64 {
		if label == 1 {
			return float64(n) / (2 * pos)
		}
		return float64(n) / (2 * neg)
	}

	x := mat.NewDense(n, d, nil)
	for i, r := range rows {
		for j, v := range r {
			x.Set(i, j, v)
		}
		x.Set(i, k, 1)
	}

	lambda := 1 / opts.C
	theta := mat.NewVecDense(d, nil)
	for iter := 0; iter < opts.MaxIter; iter++ {
		grad := mat.NewVecDense(d, nil)
		hess := mat.NewSymDense(d, nil)

		for i := 0; i < n; i++ {
			row := x.RawRowView(i)
			p := sigmoid(mat.Dot(mat.NewVecDense(d, row), theta))
			s := weight(y[i])
			g := s * (p - y[i])
			h := s * p * (1 - p)
			for a := 0; a < d; a++ {
				grad.SetVec(a, grad.AtVec(a)+g*row[a])
				for c := a; c < d; c++ {
					hess.SetSym(a, c, hess.At(a, c)+h*row[a]*row[c])
				}
			}
		}
		for a := 0; a < k; a++ {
			grad.SetVec(a, grad.AtVec(a)+lambda*theta.AtVec(a))
			hess.SetSym(a, a, hess.At(a, a)+lambda)
		}
		hess.SetSym(k, k, hess.At(k, k)+1e-9)

		var chol mat.Cholesky
		if ok := chol.Factorize(hess); !ok {
			return nil, 0, fmt.Errorf("%w: hessian not positive definite at iteration %d", ErrTraining, iter)
		}
		var step mat.VecDense
		if err := chol.SolveVecTo(&step, grad); err != nil {
			return nil, 0, fmt.Errorf("%w: %v", ErrTraining, err)
		}
		theta.SubVec(theta, &step)

		if mat.Norm(&step, math.Inf(1)) < opts.Tol {
			break
		}
	}

	w := make([]float64, k)
	for j := range w {
		w[j] = theta.AtVec(j)
	}
	return w, theta.AtVec(k), nil
}

func means(rows [][]float64, k int) []float64 {
	out := make([]float64, k)
	col := make([]float64, len(rows))
	for j := 0; j < k; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		out[j] = stat.Mean(col, nil)
	}
	return out
}

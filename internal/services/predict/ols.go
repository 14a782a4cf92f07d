package predict

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// maxCondition bounds the condition number of the standardised design
// matrix; beyond it the fit is treated as singular.
const maxCondition = 1e12

// ErrSingularFit is returned when the regression has no stable solution.
var ErrSingularFit = errors.New("singular regression")

// linearModel is an ordinary least squares fit with intercept on
// standardised inputs. Constant inputs get a zero coefficient.
type linearModel struct {
	means     []float64
	scales    []float64 // 0 marks a dropped constant column
	intercept float64
	coef      []float64
}

// fitOLS fits y ~ X. X is row-major, one slice per observation.
func fitOLS(X [][]float64, y []float64) (*linearModel, error) {
	n := len(X)
	if n == 0 || n != len(y) {
		return nil, ErrSingularFit
	}
	k := len(X[0])

	m := &linearModel{means: make([]float64, k), scales: make([]float64, k), coef: make([]float64, k)}

	col := make([]float64, n)
	var kept []int
	for j := 0; j < k; j++ {
		for i := range X {
			col[i] = X[i][j]
		}
		mean, std := stat.MeanStdDev(col, nil)
		m.means[j] = mean
		if std > 1e-12*math.Max(1, math.Abs(mean)) && !math.IsNaN(std) {
			m.scales[j] = std
			kept = append(kept, j)
		}
	}

	p := len(kept) + 1
	if n <= p {
		return nil, ErrSingularFit
	}

	design := mat.NewDense(n, p, nil)
	for i := range X {
		design.Set(i, 0, 1)
		for c, j := range kept {
			design.Set(i, c+1, (X[i][j]-m.means[j])/m.scales[j])
		}
	}

	var qr mat.QR
	qr.Factorize(design)
	if cond := qr.Cond(); math.IsInf(cond, 0) || math.IsNaN(cond) || cond > maxCondition {
		return nil, ErrSingularFit
	}

	var beta mat.VecDense
	if err := qr.SolveVecTo(&beta, false, mat.NewVecDense(n, y)); err != nil {
		return nil, ErrSingularFit
	}

	m.intercept = beta.AtVec(0)
	for c, j := range kept {
		m.coef[j] = beta.AtVec(c + 1)
	}
	return m, nil
}

// predict evaluates the model on one observation.
func (m *linearModel) predict(x []float64) float64 {
	out := m.intercept
	for j, v := range x {
		if m.scales[j] == 0 {
			continue
		}
		out += m.coef[j] * (v - m.means[j]) / m.scales[j]
	}
	return out
}

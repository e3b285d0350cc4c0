package core

import (
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

const (
	Daily = 252 // trading days per year
)

// CorrelationMatrix returns the pairwise correlation of every column in the table, benchmark included.
// Row and column order follow returns.Columns, nil when there are fewer than two rows.
func CorrelationMatrix(returns *ReturnTable) *mat.SymDense {
	n := len(returns.Columns)
	if n == 0 || returns.Len() < 2 {
		return nil
	}

	obs := mat.NewDense(returns.Len(), n, nil)
	for j, c := range returns.Columns {
		obs.SetCol(j, returns.Values[c])
	}

	cov := mat.NewSymDense(n, nil)
	stat.CovarianceMatrix(cov, obs, nil)
	return correlationFromCovariance(cov)
}

// corr_ij = cov_ij / sqrt(cov_ii*cov_jj), a column without variance correlates 0 with the rest
func correlationFromCovariance(cov *mat.SymDense) *mat.SymDense {
	n := cov.SymmetricDim()
	corr := mat.NewSymDense(n, nil)

	for i := range n {
		corr.SetSym(i, i, 1)
		for j := range i {
			if denom := math.Sqrt(cov.At(i, i) * cov.At(j, j)); denom != 0 {
				corr.SetSym(i, j, cov.At(i, j)/denom)
			}
		}
	}
	return corr
}

// AnnualizedVolatility scales a daily standard deviation to a yearly one
func AnnualizedVolatility(dailyStdDev float64) float64 {
	return dailyStdDev * math.Sqrt(Daily)
}

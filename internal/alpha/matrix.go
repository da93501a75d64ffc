package alpha

import "math"

// pivotEpsilon is the singularity threshold for Gaussian elimination.
const pivotEpsilon = 1e-10

// solveNormalEquations computes beta = (X^T X)^-1 X^T y for the small
// AR design matrix.
func solveNormalEquations(x [][]float64, y []float64) []float64 {
	k := len(x[0])

	// X^T X (k x k) and X^T y (k)
	xtx := make([][]float64, k)
	xty := make([]float64, k)
	for i := 0; i < k; i++ {
		xtx[i] = make([]float64, k)
		for j := 0; j < k; j++ {
			sum := 0.0
			for _, row := range x {
				sum += row[i] * row[j]
			}
			xtx[i][j] = sum
		}
		sum := 0.0
		for r, row := range x {
			sum += row[i] * y[r]
		}
		xty[i] = sum
	}

	inv := invert(xtx)
	beta := make([]float64, k)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			beta[i] += inv[i][j] * xty[j]
		}
	}
	return beta
}

// invert computes the inverse of a small square matrix by Gauss-Jordan
// elimination with partial pivoting. A pivot below pivotEpsilon marks
// the matrix singular and the inverse degrades to the identity matrix
// (coefficients then collapse toward the raw targets).
func invert(m [][]float64) [][]float64 {
	n := len(m)

	aug := make([][]float64, n)
	for i := 0; i < n; i++ {
		aug[i] = make([]float64, 2*n)
		copy(aug[i], m[i])
		aug[i][n+i] = 1
	}

	for col := 0; col < n; col++ {
		// partial pivoting: largest magnitude in this column
		pivotRow := col
		for r := col + 1; r < n; r++ {
			if math.Abs(aug[r][col]) > math.Abs(aug[pivotRow][col]) {
				pivotRow = r
			}
		}
		if math.Abs(aug[pivotRow][col]) < pivotEpsilon {
			return identity(n)
		}
		aug[col], aug[pivotRow] = aug[pivotRow], aug[col]

		pivot := aug[col][col]
		for j := 0; j < 2*n; j++ {
			aug[col][j] /= pivot
		}
		for r := 0; r < n; r++ {
			if r == col {
				continue
			}
			factor := aug[r][col]
			if factor == 0 {
				continue
			}
			for j := 0; j < 2*n; j++ {
				aug[r][j] -= factor * aug[col][j]
			}
		}
	}

	inv := make([][]float64, n)
	for i := 0; i < n; i++ {
		inv[i] = make([]float64, n)
		copy(inv[i], aug[i][n:])
	}
	return inv
}

func identity(n int) [][]float64 {
	id := make([][]float64, n)
	for i := 0; i < n; i++ {
		id[i] = make([]float64, n)
		id[i][i] = 1
	}
	return id
}

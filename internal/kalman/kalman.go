// Package kalman estimates track motion in image space with a constant
// velocity model. The state is the 8-vector (x, y, a, h, vx, vy, va, vh)
// where (x, y) is the box center, a the aspect ratio and h the height;
// measurements are the 4-vector (x, y, a, h). Observation noise scales
// with box height, so large nearby boxes tolerate more pixel error than
// small distant ones.
package kalman

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

const (
	stateDim = 8
	measDim  = 4

	// Motion and observation uncertainty relative to box height.
	stdWeightPosition = 1.0 / 20
	stdWeightVelocity = 1.0 / 160
)

// Filter carries the constant matrices of the motion model. It is
// stateless across tracks: each track owns its mean and covariance and
// passes them in.
type Filter struct {
	motionMat *mat.Dense // 8x8 constant-velocity transition
	updateMat *mat.Dense // 4x8 projection into measurement space
}

// NewFilter builds the motion model for a unit timestep.
func NewFilter() *Filter {
	motion := mat.NewDense(stateDim, stateDim, nil)
	for i := 0; i < stateDim; i++ {
		motion.Set(i, i, 1)
	}
	for i := 0; i < measDim; i++ {
		motion.Set(i, measDim+i, 1)
	}

	update := mat.NewDense(measDim, stateDim, nil)
	for i := 0; i < measDim; i++ {
		update.Set(i, i, 1)
	}

	return &Filter{motionMat: motion, updateMat: update}
}

// Initiate creates the state for a first-time measurement (x, y, a, h).
// Velocities start at zero with generous variance so the first updates
// can pull them anywhere.
func (f *Filter) Initiate(measurement []float64) (*mat.VecDense, *mat.Dense) {
	mean := mat.NewVecDense(stateDim, nil)
	for i := 0; i < measDim; i++ {
		mean.SetVec(i, measurement[i])
	}

	h := measurement[3]
	std := [stateDim]float64{
		2 * stdWeightPosition * h,
		2 * stdWeightPosition * h,
		1e-2,
		2 * stdWeightPosition * h,
		10 * stdWeightVelocity * h,
		10 * stdWeightVelocity * h,
		1e-5,
		10 * stdWeightVelocity * h,
	}
	cov := mat.NewDense(stateDim, stateDim, nil)
	for i, s := range std {
		cov.Set(i, i, s*s)
	}
	return mean, cov
}

// Predict propagates mean and covariance one timestep in place.
func (f *Filter) Predict(mean *mat.VecDense, cov *mat.Dense) {
	h := mean.AtVec(3)
	std := [stateDim]float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-2,
		stdWeightPosition * h,
		stdWeightVelocity * h,
		stdWeightVelocity * h,
		1e-5,
		stdWeightVelocity * h,
	}
	motionCov := mat.NewDense(stateDim, stateDim, nil)
	for i, s := range std {
		motionCov.Set(i, i, s*s)
	}

	mean.MulVec(f.motionMat, mean)
	cov.Mul(f.motionMat, cov)
	cov.Mul(cov, f.motionMat.T())
	cov.Add(cov, motionCov)
}

// Project maps a state estimate into measurement space, adding the
// observation noise expected at the state's box height.
func (f *Filter) Project(mean *mat.VecDense, cov *mat.Dense) (*mat.VecDense, *mat.SymDense) {
	h := mean.AtVec(3)
	std := [measDim]float64{
		stdWeightPosition * h,
		stdWeightPosition * h,
		1e-1,
		stdWeightPosition * h,
	}

	projectedMean := mat.NewVecDense(measDim, nil)
	projectedMean.MulVec(f.updateMat, mean)

	tmp := mat.NewDense(measDim, stateDim, nil)
	tmp.Mul(f.updateMat, cov)
	full := mat.NewDense(measDim, measDim, nil)
	full.Mul(tmp, f.updateMat.T())

	projectedCov := mat.NewSymDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		for j := i; j < measDim; j++ {
			projectedCov.SetSym(i, j, full.At(i, j))
		}
	}
	for i, s := range std {
		projectedCov.SetSym(i, i, projectedCov.At(i, i)+s*s)
	}
	return projectedMean, projectedCov
}

// Update corrects mean and covariance in place with a measurement
// (x, y, a, h).
func (f *Filter) Update(mean *mat.VecDense, cov *mat.Dense, measurement []float64) error {
	projectedMean, projectedCov := f.Project(mean, cov)

	var chol mat.Cholesky
	if ok := chol.Factorize(projectedCov); !ok {
		return fmt.Errorf("factorize projected covariance: not positive definite")
	}

	// Kalman gain K solves S·Kᵀ = (P·Hᵀ)ᵀ.
	var b mat.Dense
	b.Mul(cov, f.updateMat.T())
	var gainT mat.Dense
	if err := chol.SolveTo(&gainT, b.T()); err != nil {
		return fmt.Errorf("solve kalman gain: %w", err)
	}

	innovation := mat.NewVecDense(measDim, nil)
	for i := 0; i < measDim; i++ {
		innovation.SetVec(i, measurement[i]-projectedMean.AtVec(i))
	}

	var delta mat.VecDense
	delta.MulVec(gainT.T(), innovation)
	mean.AddVec(mean, &delta)

	// P ← P − K·S·Kᵀ
	var ks mat.Dense
	ks.Mul(gainT.T(), projectedCov)
	var ksk mat.Dense
	ksk.Mul(&ks, &gainT)
	cov.Sub(cov, &ksk)
	return nil
}

// GatingDistance returns the squared Mahalanobis distance between a state
// estimate and each row of measurements. Rows are (x, y, a, h) vectors;
// with onlyPosition only the center coordinates take part (2 degrees of
// freedom). The batch may carry extra columns beyond the compared ones.
func (f *Filter) GatingDistance(mean *mat.VecDense, cov *mat.Dense, measurements *mat.Dense, onlyPosition bool) ([]float64, error) {
	projectedMean, projectedCov := f.Project(mean, cov)

	dims := measDim
	if onlyPosition {
		dims = 2
	}
	rows, cols := measurements.Dims()
	if cols < dims {
		return nil, fmt.Errorf("measurement batch has %d columns, want at least %d", cols, dims)
	}

	compared := projectedCov
	if onlyPosition {
		compared = mat.NewSymDense(dims, nil)
		for i := 0; i < dims; i++ {
			for j := i; j < dims; j++ {
				compared.SetSym(i, j, projectedCov.At(i, j))
			}
		}
	}

	var chol mat.Cholesky
	if ok := chol.Factorize(compared); !ok {
		return nil, fmt.Errorf("factorize projected covariance: not positive definite")
	}

	distances := make([]float64, rows)
	residual := mat.NewVecDense(dims, nil)
	var solved mat.VecDense
	for r := 0; r < rows; r++ {
		for c := 0; c < dims; c++ {
			residual.SetVec(c, measurements.At(r, c)-projectedMean.AtVec(c))
		}
		if err := chol.SolveVecTo(&solved, residual); err != nil {
			return nil, fmt.Errorf("solve gating distance: %w", err)
		}
		distances[r] = mat.Dot(residual, &solved)
	}
	return distances, nil
}

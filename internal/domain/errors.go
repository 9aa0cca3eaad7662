package domain

import "errors"

// Sentinel errors for the trial pipeline. Stages wrap these with context via
// fmt.Errorf("...: %w", err) so callers can classify failures with errors.Is.
var (
	// ErrInsufficientData indicates a price series is shorter than the
	// trading-day count of the requested window. Recoverable while the
	// sector still has unused substitution candidates.
	ErrInsufficientData = errors.New("insufficient price data")

	// ErrInputMismatch indicates misaligned inputs (series of different
	// lengths, or vectors that must share a dimension but do not).
	ErrInputMismatch = errors.New("input dimensions mismatch")

	// ErrSingularCovariance indicates the covariance matrix is singular or
	// too ill-conditioned for a stable solve.
	ErrSingularCovariance = errors.New("singular covariance matrix")

	// ErrInsufficientSampleSize indicates a statistic needs more data points
	// than were provided.
	ErrInsufficientSampleSize = errors.New("insufficient sample size")
)

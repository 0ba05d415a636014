package model

import "errors"

// Error taxonomy shared by every engine. Call sites wrap these with context;
// callers match with errors.Is.
var (
	// ErrInsufficientData means a series or snapshot is too short or lacks required fields.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelFittingFailed means every candidate forecasting model failed to fit.
	ErrModelFittingFailed = errors.New("model fitting failed")
	// ErrNoDataForDate means the requested entry date lies after the last available bar.
	ErrNoDataForDate = errors.New("no data for date")
	// ErrInvalidParameter means an argument was rejected before any computation.
	ErrInvalidParameter = errors.New("invalid parameter")
)

package models

import "errors"

var (
	// ErrInvalidArgument is returned for unrecognized trading styles, asset
	// preferences or out-of-range limits. No partial result accompanies it.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrSourceUnavailable is returned when the asset table cannot be read.
	// It is never used for "no qualifying assets".
	ErrSourceUnavailable = errors.New("asset source unavailable")
)

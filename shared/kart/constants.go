// Package kart holds the deterministic kart model shared by client and
// server: control moves, vehicle constants and the physics step.
package kart

import (
	"errors"
	"fmt"
)

var ErrInvalidConstants = errors.New("invalid vehicle constants")

// Constants are the static physics parameters of one kart. They are read-only
// during simulation and must be identical on every peer simulating the kart.
type Constants struct {
	Mass                         float64 `mapstructure:"mass"`            // kg
	MaxDrivingForce              float64 `mapstructure:"maxDrivingForce"` // N
	DragCoefficient              float64 `mapstructure:"dragCoefficient"` // kg/m
	RollingResistanceCoefficient float64 `mapstructure:"rollingResistance"`
	MinTurningRadius             float64 `mapstructure:"minTurningRadius"` // m, at full steering
}

// DefaultConstants returns the stock kart.
func DefaultConstants() Constants {
	return Constants{
		Mass:                         1000,
		MaxDrivingForce:              10000,
		DragCoefficient:              16,
		RollingResistanceCoefficient: 0.015,
		MinTurningRadius:             10,
	}
}

// Validate checks that the constants describe a simulatable kart.
func (c Constants) Validate() error {
	switch {
	case c.Mass <= 0:
		return fmt.Errorf("%w: mass %v must be positive", ErrInvalidConstants, c.Mass)
	case c.MinTurningRadius <= 0:
		return fmt.Errorf("%w: min turning radius %v must be positive", ErrInvalidConstants, c.MinTurningRadius)
	case c.MaxDrivingForce < 0, c.DragCoefficient < 0, c.RollingResistanceCoefficient < 0:
		return fmt.Errorf("%w: force and resistance coefficients must not be negative", ErrInvalidConstants)
	}
	return nil
}

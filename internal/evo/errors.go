package evo

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a run parameter outside its valid domain.
type ConfigurationError struct {
	Field  string
	Value  any
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Value == nil {
		return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
	}
	return fmt.Sprintf("invalid configuration: %s=%v: %s", e.Field, e.Value, e.Reason)
}

func IsConfigurationError(err error) bool {
	var target *ConfigurationError
	return errors.As(err, &target)
}

// ErrInvariant marks a bred tour that is not a permutation. It only surfaces
// when Config.Debug is set.
var ErrInvariant = errors.New("tour invariant violated")

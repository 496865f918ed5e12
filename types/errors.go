package types

import "fmt"

// ConfigurationError reports a parameter combination that cannot be meshed.
// It is always raised before any element is generated.
type ConfigurationError struct {
	Parameter string
	Reason    string
}

func NewConfigurationError(parameter, format string, args ...any) error {
	return &ConfigurationError{Parameter: parameter, Reason: fmt.Sprintf(format, args...)}
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Parameter, e.Reason)
}

// TopologyConsistencyError identifies the pair of slices whose shared
// boundary does not match. SliceB is -1 when the problem is local to SliceA.
type TopologyConsistencyError struct {
	SliceA, SliceB int
	Boundary       string
	Reason         string
}

func NewTopologyError(a, b int, boundary, format string, args ...any) error {
	return &TopologyConsistencyError{SliceA: a, SliceB: b, Boundary: boundary,
		Reason: fmt.Sprintf(format, args...)}
}

func (e *TopologyConsistencyError) Error() string {
	if e.SliceB < 0 {
		return fmt.Sprintf("topology error in slice %d (%s): %s", e.SliceA, e.Boundary, e.Reason)
	}
	return fmt.Sprintf("topology error between slices %d and %d (%s): %s",
		e.SliceA, e.SliceB, e.Boundary, e.Reason)
}

// ModelEvaluationError is raised while sampling the Earth model for a lookup
// table. Radius is in meters.
type ModelEvaluationError struct {
	Table  string
	Radius float64
	Reason string
}

func NewModelError(table string, radius float64, format string, args ...any) error {
	return &ModelEvaluationError{Table: table, Radius: radius, Reason: fmt.Sprintf(format, args...)}
}

func (e *ModelEvaluationError) Error() string {
	return fmt.Sprintf("%s table: model evaluation failed at radius %.1f m: %s", e.Table, e.Radius, e.Reason)
}

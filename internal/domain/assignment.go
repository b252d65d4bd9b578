package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Assignment is one point of the parameter space: the values a single
// simulation run is configured with.
type Assignment struct {
	ID      int
	Floats  map[string]float64
	Strings map[string]string
}

// NewAssignment returns an empty assignment with initialized maps.
func NewAssignment() Assignment {
	return Assignment{
		Floats:  make(map[string]float64),
		Strings: make(map[string]string),
	}
}

// Float returns the named float parameter.
func (a Assignment) Float(name string) (float64, bool) {
	v, ok := a.Floats[name]
	return v, ok
}

// String returns the named string parameter.
func (a Assignment) String(name string) (string, bool) {
	v, ok := a.Strings[name]
	return v, ok
}

// Clone returns a deep copy.
func (a Assignment) Clone() Assignment {
	out := Assignment{
		ID:      a.ID,
		Floats:  make(map[string]float64, len(a.Floats)),
		Strings: make(map[string]string, len(a.Strings)),
	}
	for k, v := range a.Floats {
		out.Floats[k] = v
	}
	for k, v := range a.Strings {
		out.Strings[k] = v
	}
	return out
}

// FloatNames returns float parameter names in sorted order.
func (a Assignment) FloatNames() []string {
	names := make([]string, 0, len(a.Floats))
	for k := range a.Floats {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// StringNames returns string parameter names in sorted order.
func (a Assignment) StringNames() []string {
	names := make([]string, 0, len(a.Strings))
	for k := range a.Strings {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

// FloatParamsString formats the float parameters as "Parameters <id>: name value ...".
func (a Assignment) FloatParamsString() string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Parameters %d:", a.ID))
	for _, name := range a.FloatNames() {
		sb.WriteString(fmt.Sprintf(" %s %.2f", name, a.Floats[name]))
	}
	return sb.String()
}

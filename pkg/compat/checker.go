package compat

import (
	"fmt"
	"strings"

	"github.com/streamhouse/eventflow/pkg/schema"
)

// Mode is a schema compatibility mode. The zero value is not valid;
// use ParseMode or one of the constants.
type Mode string

// Compatibility modes, matching the schema registry's configuration
// levels. Transitive variants check the candidate against every prior
// version instead of only the latest one.
const (
	None               Mode = "NONE"
	Backward           Mode = "BACKWARD"
	BackwardTransitive Mode = "BACKWARD_TRANSITIVE"
	Forward            Mode = "FORWARD"
	ForwardTransitive  Mode = "FORWARD_TRANSITIVE"
	Full               Mode = "FULL"
	FullTransitive     Mode = "FULL_TRANSITIVE"
)

// ParseMode validates a mode string (case-insensitive) and returns the
// corresponding Mode.
func ParseMode(s string) (Mode, error) {
	m := Mode(strings.ToUpper(s))
	switch m {
	case None, Backward, BackwardTransitive, Forward, ForwardTransitive, Full, FullTransitive:
		return m, nil
	}
	return "", fmt.Errorf("invalid compatibility mode %q", s)
}

// Transitive reports whether the mode checks against the full version
// history rather than only the latest version.
func (m Mode) Transitive() bool {
	switch m {
	case BackwardTransitive, ForwardTransitive, FullTransitive:
		return true
	}
	return false
}

// Violation describes one incompatibility between two schema versions.
type Violation struct {
	// Field is the offending field name, dot-separated for nested records
	Field string

	// Reason is a human-readable description of the incompatibility
	Reason string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Reason)
}

// Check evaluates whether candidate is a compatible evolution of the
// subject's registered history under the given mode. The history is
// ordered oldest first; version numbers in violation reasons are
// 1-based positions within it. An empty result means compatible.
//
// Check is a pure local evaluation. The registry performs the same
// check server-side during registration, and the server's verdict is
// authoritative; local results are advisory pre-flight information.
func Check(mode Mode, candidate *schema.Definition, history []*schema.Definition) []Violation {
	if mode == None || candidate == nil || len(history) == 0 {
		return nil
	}

	priors := history
	if !mode.Transitive() {
		priors = history[len(history)-1:]
	}

	var violations []Violation
	for i, prior := range priors {
		version := i + 1
		if !mode.Transitive() {
			version = len(history)
		}

		switch mode {
		case Backward, BackwardTransitive:
			violations = append(violations, readCompatible(candidate, prior, version, "old")...)
		case Forward, ForwardTransitive:
			violations = append(violations, readCompatible(prior, candidate, version, "new")...)
		case Full, FullTransitive:
			violations = append(violations, readCompatible(candidate, prior, version, "old")...)
			violations = append(violations, readCompatible(prior, candidate, version, "new")...)
		}
	}
	return violations
}

// readCompatible checks that reader can read data written with writer:
// writer fields missing from reader must have carried a default, shared
// fields need read-compatible types, and reader fields unknown to the
// writer must declare a default. Violations name the writer's role
// ("old" or "new") so BACKWARD and FORWARD reports read naturally.
func readCompatible(reader, writer *schema.Definition, version int, writerRole string) []Violation {
	var violations []Violation

	for _, wf := range writer.Fields {
		rf, ok := reader.FieldByName(wf.Name)
		if !ok {
			if !wf.HasDefault {
				violations = append(violations, Violation{
					Field:  wf.Name,
					Reason: fmt.Sprintf("required field removed without a default (%s version %d)", writerRole, version),
				})
			}
			continue
		}
		violations = append(violations, fieldReadable(rf, wf, wf.Name, version, writerRole)...)
	}

	for _, rf := range reader.Fields {
		if _, ok := writer.FieldByName(rf.Name); ok {
			continue
		}
		if !rf.HasDefault {
			violations = append(violations, Violation{
				Field:  rf.Name,
				Reason: fmt.Sprintf("field added without a default (missing from %s version %d)", writerRole, version),
			})
		}
	}

	return violations
}

func fieldReadable(reader, writer schema.Field, path string, version int, writerRole string) []Violation {
	if reader.Type == schema.TypeRecord && writer.Type == schema.TypeRecord {
		var violations []Violation
		for _, v := range readCompatible(reader.Record, writer.Record, version, writerRole) {
			violations = append(violations, Violation{
				Field:  path + "." + v.Field,
				Reason: v.Reason,
			})
		}
		return violations
	}

	if typeReadable(reader.Type, writer.Type) {
		return nil
	}

	return []Violation{{
		Field:  path,
		Reason: fmt.Sprintf("type changed from %q to %q incompatibly (%s version %d)", writer.Type, reader.Type, writerRole, version),
	}}
}

// typeReadable reports whether a reader of type r can decode a value
// written as type w, allowing the standard numeric promotions.
func typeReadable(r, w schema.Type) bool {
	if r == w {
		return true
	}
	switch r {
	case schema.TypeLong:
		return w == schema.TypeInt
	case schema.TypeFloat:
		return w == schema.TypeInt || w == schema.TypeLong
	case schema.TypeDouble:
		return w == schema.TypeInt || w == schema.TypeLong || w == schema.TypeFloat
	}
	return false
}

// Package nametree parses dotted TR-181-style parameter names: splitting
// a concrete name into a table/instance/leaf coordinate, collapsing
// instance segments into the literal "{i}" template token, and walking
// template ancestry.
package nametree

import (
	"errors"
	"strconv"
	"strings"
)

const instanceToken = "{i}"

var (
	// ErrEmptyName is returned for the empty string.
	ErrEmptyName = errors.New("nametree: empty name")
	// ErrMalformedName is returned for consecutive dots or other
	// structural defects.
	ErrMalformedName = errors.New("nametree: malformed name")
)

// Row is the (table_prefix, instance, leaf_name) coordinate extracted by
// SplitRow. TablePrefix always ends in ".".
type Row struct {
	TablePrefix string
	Instance    uint32
	Leaf        string
}

func segments(name string) ([]string, error) {
	if name == "" {
		return nil, ErrEmptyName
	}
	parts := strings.Split(name, ".")
	for _, p := range parts {
		if p == "" {
			return nil, ErrMalformedName
		}
	}
	return parts, nil
}

// isInstanceSegment reports whether s parses as a positive integer
// <= 2^32-1 using strtoul-style rules: decimal digits only, leading
// zeros accepted, no sign, no trailing garbage.
func isInstanceSegment(s string) (uint32, bool) {
	for _, c := range s {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil || n == 0 {
		return 0, false
	}
	return uint32(n), true
}

// SplitRow scans name right to left for the rightmost instance segment
// that is neither the first nor the last dotted segment. It returns the
// table prefix (ending in "."), the parsed instance number, and the
// dotted leaf tail. ok is false if no such segment exists, meaning the name is
// a plain (non-row) property name.
func SplitRow(name string) (row Row, ok bool, err error) {
	parts, err := segments(name)
	if err != nil {
		return Row{}, false, err
	}
	if len(parts) < 3 {
		// Need at least table, instance, leaf.
		return Row{}, false, nil
	}
	for i := len(parts) - 2; i >= 1; i-- {
		inst, isInst := isInstanceSegment(parts[i])
		if !isInst {
			continue
		}
		prefix := strings.Join(parts[:i], ".") + "."
		leaf := strings.Join(parts[i+1:], ".")
		return Row{TablePrefix: prefix, Instance: inst, Leaf: leaf}, true, nil
	}
	return Row{}, false, nil
}

// ToTemplate replaces every instance segment in name with the literal
// token "{i}", preserving a trailing dot if present.
func ToTemplate(name string) (string, error) {
	trailingDot := strings.HasSuffix(name, ".")
	trimmed := name
	if trailingDot {
		trimmed = strings.TrimSuffix(name, ".")
	}
	parts, err := segments(trimmed)
	if err != nil {
		return "", err
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		// The final segment is a leaf name unless the original name
		// ended in a dot, in which case it sits in an instance position
		// ("Device.Foo.2." names row 2, not a leaf called "2").
		if i == 0 || (i == len(parts)-1 && !trailingDot) {
			out[i] = p
			continue
		}
		if _, isInst := isInstanceSegment(p); isInst {
			out[i] = instanceToken
		} else {
			out[i] = p
		}
	}
	result := strings.Join(out, ".")
	if trailingDot {
		result += "."
	}
	return result, nil
}

// ParentTemplate returns the longest strict prefix of template ending in
// ".{i}.", i.e. the template of the enclosing table one level up. ok is
// false if template has no such ancestor.
func ParentTemplate(template string) (parent string, ok bool) {
	trimmed := strings.TrimSuffix(template, ".")
	idx := strings.LastIndex(trimmed, "."+instanceToken+".")
	if idx < 0 {
		return "", false
	}
	return trimmed[:idx+len(instanceToken)+2], true
}

// CountInstances returns the number of instance segments in name, used
// only to order seed/ancestor creation outermost-first.
func CountInstances(name string) int {
	parts := strings.Split(strings.TrimSuffix(name, "."), ".")
	count := 0
	for i := 1; i < len(parts)-1; i++ {
		if _, isInst := isInstanceSegment(parts[i]); isInst {
			count++
		}
	}
	return count
}

// IsTemplate reports whether name contains the literal "{i}" token.
func IsTemplate(name string) bool {
	return strings.Contains(name, instanceToken)
}

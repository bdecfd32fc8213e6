// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package tools

import (
	"fmt"
	"net"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// =============================================================================
// VALIDATION ERRORS
// =============================================================================

// ValidationError represents a parameter validation error.
type ValidationError struct {
	Param   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Param + ": " + e.Message
}

// ValidationErrors collects every problem found in one parameter set.
type ValidationErrors []*ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, len(e))
	for i, v := range e {
		msgs[i] = v.Error()
	}
	return strings.Join(msgs, "; ")
}

// Collect gathers non-nil errors into ValidationErrors. Errors that are not
// validation errors are wrapped under the "params" name. Returns nil when
// nothing failed.
func Collect(errs ...error) error {
	var out ValidationErrors
	for _, err := range errs {
		switch e := err.(type) {
		case nil:
		case *ValidationError:
			out = append(out, e)
		case ValidationErrors:
			out = append(out, e...)
		default:
			out = append(out, &ValidationError{Param: "params", Message: err.Error()})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// =============================================================================
// FIELD VALIDATORS
// =============================================================================

// ValidateIPv4 requires four dot-separated decimal octets in 0..255.
func ValidateIPv4(param, s string) error {
	if !IsIPv4(s) {
		return &ValidationError{Param: param, Message: fmt.Sprintf("%q is not a valid IPv4 address (expected four octets 0-255)", s)}
	}
	return nil
}

// IsIPv4 reports whether s is a dotted quad with every octet in 0..255.
func IsIPv4(s string) bool {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 4 {
		return false
	}
	for _, p := range parts {
		if p == "" || len(p) > 3 {
			return false
		}
		n, err := strconv.Atoi(p)
		if err != nil || n < 0 || n > 255 || strings.HasPrefix(p, "+") {
			return false
		}
	}
	return true
}

// ValidateIP accepts IPv4 (strict form) or IPv6.
func ValidateIP(param, s string) error {
	if IsIPv4(s) {
		return nil
	}
	if ip := net.ParseIP(strings.TrimSpace(s)); ip != nil && strings.Contains(s, ":") {
		return nil
	}
	return &ValidationError{Param: param, Message: fmt.Sprintf("%q is not a valid IP address", s)}
}

// ValidateURL requires an http:// or https:// URL with a host.
func ValidateURL(param, s string) error {
	s = strings.TrimSpace(s)
	lower := strings.ToLower(s)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		return &ValidationError{Param: param, Message: fmt.Sprintf("%q must start with http:// or https://", s)}
	}
	u, err := url.Parse(s)
	if err != nil || u.Host == "" {
		return &ValidationError{Param: param, Message: fmt.Sprintf("%q is not a valid URL", s)}
	}
	return nil
}

// ValidatePort requires 1..65535.
func ValidatePort(param string, port int) error {
	if port < 1 || port > 65535 {
		return &ValidationError{Param: param, Message: fmt.Sprintf("port %d out of range (1-65535)", port)}
	}
	return nil
}

// ParsePortSpec expands "80", "1-1000" or "22,80,443-445" into ports in
// ascending input order. Duplicates are dropped.
func ParsePortSpec(spec string) ([]int, error) {
	seen := make(map[int]bool)
	var ports []int
	add := func(p int) {
		if !seen[p] {
			seen[p] = true
			ports = append(ports, p)
		}
	}

	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		lo, hi, isRange := strings.Cut(part, "-")
		start, err := strconv.Atoi(strings.TrimSpace(lo))
		if err != nil {
			return nil, fmt.Errorf("invalid port %q", part)
		}
		end := start
		if isRange {
			if end, err = strconv.Atoi(strings.TrimSpace(hi)); err != nil {
				return nil, fmt.Errorf("invalid port range %q", part)
			}
		}
		if start < 1 || end > 65535 || start > end {
			return nil, fmt.Errorf("port range %q out of bounds (1-65535)", part)
		}
		for p := start; p <= end; p++ {
			add(p)
		}
	}
	if len(ports) == 0 {
		return nil, fmt.Errorf("no ports in %q", spec)
	}
	return ports, nil
}

// ValidatePortRange checks a port specification accepted by ParsePortSpec.
func ValidatePortRange(param, spec string) error {
	if _, err := ParsePortSpec(spec); err != nil {
		return &ValidationError{Param: param, Message: err.Error()}
	}
	return nil
}

// ValidateThreads requires 1..max.
func ValidateThreads(param string, threads, max int) error {
	if threads < 1 || threads > max {
		return &ValidationError{Param: param, Message: fmt.Sprintf("thread count %d out of range (1-%d)", threads, max)}
	}
	return nil
}

var (
	domainPattern = regexp.MustCompile(`^(?i)[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?(\.[a-z0-9]([a-z0-9-]{0,61}[a-z0-9])?)+$`)
	macPattern    = regexp.MustCompile(`^(?i)([0-9a-f]{2}[:-]){5}[0-9a-f]{2}$|^(?i)[0-9a-f]{12}$|^(?i)([0-9a-f]{4}\.){2}[0-9a-f]{4}$`)
)

// ValidateDomain requires a dotted host name.
func ValidateDomain(param, s string) error {
	if !domainPattern.MatchString(strings.TrimSuffix(strings.TrimSpace(s), ".")) {
		return &ValidationError{Param: param, Message: fmt.Sprintf("%q is not a valid domain name", s)}
	}
	return nil
}

// ValidateMAC accepts colon, dash, dot or bare hex notation.
func ValidateMAC(param, s string) error {
	if !macPattern.MatchString(strings.TrimSpace(s)) {
		return &ValidationError{Param: param, Message: fmt.Sprintf("%q is not a valid MAC address", s)}
	}
	return nil
}

// RequireFields reports each named parameter that is missing or blank.
func RequireFields(p Params, names ...string) error {
	var errs []error
	for _, n := range names {
		if !p.Has(n) {
			errs = append(errs, &ValidationError{Param: n, Message: "required parameter is missing"})
		}
	}
	return Collect(errs...)
}

// =============================================================================
// SCHEMA VALIDATION
// =============================================================================

// ValidateSchema checks params against the declared form schema: required
// fields, numeric bounds, numeric types and select options.
func ValidateSchema(schema []Field, p Params) error {
	var errs []error
	for _, f := range schema {
		if f.Required && !p.Has(f.Name) {
			errs = append(errs, &ValidationError{Param: f.Name, Message: "required parameter is missing"})
			continue
		}
		if !p.Has(f.Name) {
			continue
		}
		v := p[f.Name]

		switch f.Type.kind() {
		case FieldNumber, FieldFloat:
			n, ok := toFloat(v)
			if !ok {
				errs = append(errs, &ValidationError{Param: f.Name, Message: "expected a number"})
				continue
			}
			if f.Min != nil && n < *f.Min {
				errs = append(errs, &ValidationError{Param: f.Name, Message: fmt.Sprintf("%g is below the minimum %g", n, *f.Min)})
			}
			if f.Max != nil && n > *f.Max {
				errs = append(errs, &ValidationError{Param: f.Name, Message: fmt.Sprintf("%g is above the maximum %g", n, *f.Max)})
			}
		case FieldSelect:
			if len(f.Options) == 0 {
				continue
			}
			s := stringify(v)
			valid := false
			for _, o := range f.Options {
				if strings.EqualFold(o, s) {
					valid = true
					break
				}
			}
			if !valid {
				errs = append(errs, &ValidationError{Param: f.Name, Message: fmt.Sprintf("%q is not one of %s", s, strings.Join(f.Options, ", "))})
			}
		}
	}
	return Collect(errs...)
}

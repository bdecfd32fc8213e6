// args.go - flag parsing shared by the subcommands.
//
// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"strconv"
	"strings"
)

// =============================================================================
// ARG PARSER
// =============================================================================

// ArgParser handles the flag formats every subcommand accepts:
//   - Long flags: --flag value or --flag=value
//   - Short flags: -f value
//   - Boolean flags: --flag (no value needed)
//   - Positional arguments: arguments without flags
//
// Flag order is preserved so tool parameters reach the orchestrator in the
// order they were typed.
type ArgParser struct {
	flags      map[string]string
	boolFlags  map[string]bool
	order      []string
	positional []string
	raw        []string
}

// NewArgParser parses raw. Names in switches never consume the following
// argument, so "--serve example.com" keeps example.com positional.
//
//	args := NewArgParser([]string{"dns", "--domain", "example.com", "--json"})
//	args.Positional(0)    // "dns"
//	args.Flag("domain")   // "example.com"
//	args.BoolFlag("json") // true
func NewArgParser(raw []string, switches ...string) *ArgParser {
	isSwitch := make(map[string]bool, len(switches))
	for _, s := range switches {
		isSwitch[s] = true
	}

	p := &ArgParser{
		flags:     make(map[string]string),
		boolFlags: make(map[string]bool),
		raw:       raw,
	}

	for i := 0; i < len(raw); i++ {
		arg := raw[i]
		if !strings.HasPrefix(arg, "-") || arg == "-" {
			p.positional = append(p.positional, arg)
			continue
		}

		if name, value, ok := strings.Cut(arg, "="); ok {
			name = strings.TrimLeft(name, "-")
			// Boolean flags can be explicit: --json=true, --json=false
			if value == "true" || value == "false" {
				p.setBool(name, value == "true")
			} else {
				p.setString(name, value)
			}
			continue
		}

		name := strings.TrimLeft(arg, "-")
		if !isSwitch[name] && i+1 < len(raw) && !strings.HasPrefix(raw[i+1], "-") {
			p.setString(name, raw[i+1])
			i++
			continue
		}
		p.setBool(name, true)
	}
	return p
}

func (p *ArgParser) setString(name, value string) {
	if !p.HasFlag(name) {
		p.order = append(p.order, name)
	}
	delete(p.boolFlags, name)
	p.flags[name] = value
}

func (p *ArgParser) setBool(name string, value bool) {
	if !p.HasFlag(name) {
		p.order = append(p.order, name)
	}
	delete(p.flags, name)
	p.boolFlags[name] = value
}

// Flag returns the value of a string flag, or "".
func (p *ArgParser) Flag(name string) string {
	return p.flags[strings.TrimLeft(name, "-")]
}

// FlagOrDefault returns the flag value or a default if not found.
func (p *ArgParser) FlagOrDefault(name, defaultValue string) string {
	if val := p.Flag(name); val != "" {
		return val
	}
	return defaultValue
}

// FlagInt returns the flag as an integer. A missing flag yields def; a
// malformed one is an error.
func (p *ArgParser) FlagInt(name string, def int) (int, error) {
	val := p.Flag(name)
	if val == "" {
		return def, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, &UsageError{Msg: fmt.Sprintf("--%s must be an integer (got %q)", name, val)}
	}
	return n, nil
}

// BoolFlag returns the value of a boolean flag, false if absent.
func (p *ArgParser) BoolFlag(name string) bool {
	return p.boolFlags[strings.TrimLeft(name, "-")]
}

// Positional returns the positional argument at index, or "".
func (p *ArgParser) Positional(index int) string {
	if index < 0 || index >= len(p.positional) {
		return ""
	}
	return p.positional[index]
}

// PositionalFrom returns all positional arguments starting from index.
func (p *ArgParser) PositionalFrom(index int) []string {
	if index < 0 || index >= len(p.positional) {
		return []string{}
	}
	return p.positional[index:]
}

// PositionalCount returns the number of positional arguments.
func (p *ArgParser) PositionalCount() int {
	return len(p.positional)
}

// HasFlag returns true if the flag exists (either as string or bool flag).
func (p *ArgParser) HasFlag(name string) bool {
	name = strings.TrimLeft(name, "-")
	_, hasString := p.flags[name]
	_, hasBool := p.boolFlags[name]
	return hasString || hasBool
}

// Names returns every flag name in the order first seen.
func (p *ArgParser) Names() []string {
	return append([]string(nil), p.order...)
}

// Value returns a flag as string or bool, whichever it was parsed as.
func (p *ArgParser) Value(name string) (any, bool) {
	if v, ok := p.flags[name]; ok {
		return v, true
	}
	if v, ok := p.boolFlags[name]; ok {
		return v, true
	}
	return nil, false
}

// Raw returns the original raw arguments.
func (p *ArgParser) Raw() []string {
	return p.raw
}

// ParseBoolString parses a boolean from various string representations.
// Accepts: true/false, yes/no, y/n, 1/0, on/off (case-insensitive)
func ParseBoolString(s string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true", "yes", "y", "1", "on":
		return true, nil
	case "false", "no", "n", "0", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid boolean value: %s", s)
	}
}

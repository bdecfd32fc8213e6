// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"errors"
	"regexp"
	"strings"
)

// ErrUnsafeFilename is returned for names that could escape the target dir.
var ErrUnsafeFilename = errors.New("filename contains path components")

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// CheckFilename rejects names containing "..", "/" or "\".
func CheckFilename(name string) error {
	if name == "" {
		return errors.New("filename is empty")
	}
	if strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrUnsafeFilename
	}
	return nil
}

// SafeFilename replaces everything outside [A-Za-z0-9._-] with '_'. Callers
// must run CheckFilename first; this only normalizes characters.
func SafeFilename(name string) string {
	name = strings.TrimSpace(name)
	name = unsafeFileChars.ReplaceAllString(name, "_")
	name = strings.TrimLeft(name, ".")
	if name == "" {
		return "file"
	}
	if len(name) > 128 {
		name = name[:128]
	}
	return name
}

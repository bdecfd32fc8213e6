// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package security

import (
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/aleopantest/aleopantest/internal/util"
)

// Environment names reported in the identity block.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Identity describes who is operating the toolbox. It is stamped into the
// execution block of every envelope.
type Identity struct {
	Username  string `json:"username"`
	Hostname  string `json:"hostname"`
	OS        string `json:"os"`
	OSRelease string `json:"os_release"`
	Timestamp string `json:"timestamp"`
	Env       string `json:"env"`
}

// Getenv is the environment lookup used by CurrentIdentity.
type Getenv func(string) string

// CurrentIdentity resolves the operator identity from the environment.
// Explicit ALEO_ADMIN_* values win over the login and host variables.
// release is the kernel/OS release string from the platform probe.
func CurrentIdentity(getenv Getenv, release string) Identity {
	if getenv == nil {
		getenv = os.Getenv
	}

	user := util.FirstNonEmpty(getenv("ALEO_ADMIN_USER"), getenv("USER"), getenv("USERNAME"))
	if user == "" {
		user = "unknown"
	}

	host := util.FirstNonEmpty(getenv("ALEO_ADMIN_HOST"), getenv("HOSTNAME"), getenv("COMPUTERNAME"))
	if host == "" {
		if h, err := os.Hostname(); err == nil && h != "" {
			host = h
		} else {
			host = "localhost"
		}
	}

	return Identity{
		Username:  user,
		Hostname:  host,
		OS:        runtime.GOOS,
		OSRelease: release,
		Timestamp: time.Now().Format(time.RFC3339),
		Env:       detectEnv(getenv),
	}
}

func detectEnv(getenv Getenv) string {
	if env := strings.TrimSpace(getenv("ALEO_ENV")); env != "" {
		return strings.ToLower(env)
	}
	if getenv("KUBERNETES_SERVICE_HOST") != "" {
		return EnvProduction
	}
	return EnvDevelopment
}

// Refreshed returns a copy with the timestamp set to now. Envelopes carry the
// time they were built, not the time the process started.
func (id Identity) Refreshed() Identity {
	id.Timestamp = time.Now().Format(time.RFC3339)
	return id
}

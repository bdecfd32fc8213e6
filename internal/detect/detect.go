// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect probes the host platform: operating system, WSL and Termux
// environments, and a thread budget for multi-threaded tools.
package detect

import (
	"os"
	"runtime"
	"strings"
	"sync"
)

// MaxThreadsCap is the absolute ceiling on suggested worker threads.
const MaxThreadsCap = 50

// =============================================================================
// PLATFORM INFO
// =============================================================================

// Platform describes the host the toolbox is running on.
type Platform struct {
	OS         string `json:"os"`
	Arch       string `json:"arch"`
	Release    string `json:"release"`
	IsWSL      bool   `json:"is_wsl"`
	IsTermux   bool   `json:"is_termux"`
	CPUCount   int    `json:"cpu_count"`
	MaxThreads int    `json:"max_threads"`
}

// String returns a short human description, e.g. "linux/amd64 (WSL)".
func (p Platform) String() string {
	s := p.OS + "/" + p.Arch
	switch {
	case p.IsTermux:
		s += " (Termux)"
	case p.IsWSL:
		s += " (WSL)"
	}
	return s
}

// SuggestedThreads returns min(cpu*2, MaxThreadsCap), never below 1.
func SuggestedThreads(cpu int) int {
	if cpu < 1 {
		cpu = 1
	}
	n := cpu * 2
	if n > MaxThreadsCap {
		n = MaxThreadsCap
	}
	return n
}

// =============================================================================
// DETECTION
// =============================================================================

// probe gathers the inputs Detect reads, so tests can fake the host.
type probe struct {
	goos      string
	arch      string
	cpus      int
	getenv    func(string) string
	readFile  func(string) ([]byte, error)
	osRelease func() string
}

func hostProbe() probe {
	return probe{
		goos:      runtime.GOOS,
		arch:      runtime.GOARCH,
		cpus:      runtime.NumCPU(),
		getenv:    os.Getenv,
		readFile:  os.ReadFile,
		osRelease: kernelRelease,
	}
}

func (p probe) detect() Platform {
	plat := Platform{
		OS:       p.goos,
		Arch:     p.arch,
		Release:  p.osRelease(),
		CPUCount: p.cpus,
	}

	if p.goos == "linux" || p.goos == "android" {
		if v, err := p.readFile("/proc/version"); err == nil {
			plat.IsWSL = strings.Contains(strings.ToLower(string(v)), "microsoft")
		}
		if p.getenv("TERMUX_VERSION") != "" || strings.Contains(p.getenv("PREFIX"), "com.termux") {
			plat.IsTermux = true
		}
	}

	plat.MaxThreads = SuggestedThreads(p.cpus)
	return plat
}

var (
	cached     Platform
	cachedOnce sync.Once
)

// Detect probes the current host. The result is computed once per process;
// none of the inputs change while running.
func Detect() Platform {
	cachedOnce.Do(func() {
		cached = hostProbe().detect()
	})
	return cached
}

// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build !linux

package catalog

import (
	"context"
	"time"

	"github.com/aleopantest/aleopantest/internal/tools"
)

const rawCaptureSupported = false

func capturePackets(context.Context, *tools.Base, string, int, time.Duration) ([]Packet, error) {
	return nil, tools.NewDependency("packet capture is not supported on this platform", "requires Linux AF_PACKET sockets")
}

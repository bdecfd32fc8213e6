// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

//go:build linux

package catalog

import (
	"context"
	"errors"
	"net"
	"time"

	"golang.org/x/sys/unix"

	"github.com/aleopantest/aleopantest/internal/tools"
)

const rawCaptureSupported = true

func htons(v uint16) uint16 {
	return v<<8 | v>>8
}

// capturePackets reads frames from an AF_PACKET socket until count frames
// arrived, the window closed or the tool was stopped.
func capturePackets(ctx context.Context, b *tools.Base, iface string, count int, window time.Duration) ([]Packet, error) {
	fd, err := unix.Socket(unix.AF_PACKET, unix.SOCK_RAW, int(htons(unix.ETH_P_ALL)))
	if err != nil {
		return nil, tools.NewDependency("open raw socket: "+err.Error(), snifferHint)
	}
	defer unix.Close(fd)

	if iface != "" {
		ifi, err := net.InterfaceByName(iface)
		if err != nil {
			return nil, tools.NewValidation("interface: %v", err)
		}
		sll := &unix.SockaddrLinklayer{Protocol: htons(unix.ETH_P_ALL), Ifindex: ifi.Index}
		if err := unix.Bind(fd, sll); err != nil {
			return nil, tools.Runtime("bind "+iface, err)
		}
	}

	tv := unix.NsecToTimeval((250 * time.Millisecond).Nanoseconds())
	if err := unix.SetsockoptTimeval(fd, unix.SOL_SOCKET, unix.SO_RCVTIMEO, &tv); err != nil {
		return nil, tools.Runtime("set receive timeout", err)
	}

	deadline := time.Now().Add(window)
	buf := make([]byte, 65536)
	var out []Packet
	for len(out) < count && time.Now().Before(deadline) && b.IsRunning() && ctx.Err() == nil {
		n, _, err := unix.Recvfrom(fd, buf, 0)
		if err != nil {
			if errors.Is(err, unix.EAGAIN) || errors.Is(err, unix.EINTR) {
				continue
			}
			return out, tools.Runtime("receive", err)
		}
		if pkt, ok := DecodeFrame(buf[:n], time.Now()); ok {
			out = append(out, pkt)
		}
	}
	return out, nil
}

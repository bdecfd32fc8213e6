// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package catalog

import (
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/aleopantest/aleopantest/internal/tools"
)

// =============================================================================
// PACKET SNIFFER
// =============================================================================

// Packet summarizes one captured frame.
type Packet struct {
	Timestamp string `json:"timestamp"`
	Length    int    `json:"length"`
	SrcMAC    string `json:"src_mac"`
	DstMAC    string `json:"dst_mac"`
	EtherType string `json:"ether_type"`
	Protocol  string `json:"protocol,omitempty"`
	Src       string `json:"src,omitempty"`
	Dst       string `json:"dst,omitempty"`
}

func (Packet) Kind() string { return "packet" }

const snifferHint = "run as root (or grant CAP_NET_RAW) on Linux; packet capture requires raw socket access"

func isRoot() bool {
	return os.Geteuid() == 0
}

// snifferProbe marks sniffer unavailable when raw sockets cannot be opened.
func snifferProbe(deps Deps) tools.Probe {
	return func() error {
		if !rawCaptureSupported {
			return tools.NewDependency("packet capture is not supported on this platform", "requires Linux AF_PACKET sockets")
		}
		if !deps.IsRoot() {
			return tools.NewDependency("raw packet capture requires elevated privileges", snifferHint)
		}
		return nil
	}
}

type snifferTool struct {
	*tools.Base
}

func newSniffer() *snifferTool {
	return &snifferTool{Base: tools.NewBase(tools.Metadata{
		Name:            "Packet Sniffer",
		Version:         "1.0",
		Author:          Author,
		Description:     "Capture and summarize Ethernet frames on a local interface",
		Usage:           "run sniffer [--interface eth0] [--count 20] [--duration 10]",
		Example:         "run sniffer --interface eth0 --count 50",
		Category:        tools.CategoryNetwork,
		Requirements:    []string{"root or CAP_NET_RAW", "Linux"},
		Tags:            []string{"capture", "packets", "passive"},
		RiskLevel:       tools.RiskHigh,
		LegalDisclaimer: Disclaimer,
		Parameters: map[string]string{
			"interface": "Interface name (empty captures on all)",
			"count":     "Stop after this many packets",
			"duration":  "Stop after this many seconds",
		},
		FormSchema: []tools.Field{
			{Name: "interface", Label: "Interface", Type: tools.FieldText},
			{Name: "count", Label: "Packets", Type: tools.FieldNumber, Default: 20, Min: tools.Bound(1), Max: tools.Bound(10000)},
			{Name: "duration", Label: "Duration (s)", Type: tools.FieldNumber, Default: 10},
		},
	})}
}

func (t *snifferTool) Run(ctx context.Context, p tools.Params) error {
	iface := p.String("interface")
	count := p.Int("count", 20)
	window := time.Duration(p.Int("duration", 10)) * time.Second

	zerolog.Ctx(ctx).Info().Str("interface", iface).Int("count", count).Msg("capture started")
	packets, err := capturePackets(ctx, t.Base, iface, count, window)
	for _, pkt := range packets {
		t.AddResult(pkt)
	}
	if err != nil {
		return err
	}
	if len(packets) < count {
		t.AddWarning(fmt.Sprintf("captured %d of %d packets before the window closed", len(packets), count))
	}
	return nil
}

// DecodeFrame summarizes an Ethernet II frame with IPv4/IPv6 and TCP/UDP
// headers where present.
func DecodeFrame(frame []byte, at time.Time) (Packet, bool) {
	if len(frame) < 14 {
		return Packet{}, false
	}
	pkt := Packet{
		Timestamp: at.UTC().Format(time.RFC3339Nano),
		Length:    len(frame),
		DstMAC:    net.HardwareAddr(frame[0:6]).String(),
		SrcMAC:    net.HardwareAddr(frame[6:12]).String(),
	}
	etherType := binary.BigEndian.Uint16(frame[12:14])
	payload := frame[14:]

	switch etherType {
	case 0x0800:
		pkt.EtherType = "IPv4"
		if len(payload) < 20 {
			return pkt, true
		}
		ihl := int(payload[0]&0x0f) * 4
		if ihl < 20 || len(payload) < ihl {
			return pkt, true
		}
		src := net.IP(payload[12:16]).String()
		dst := net.IP(payload[16:20]).String()
		pkt.Protocol, pkt.Src, pkt.Dst = transport(payload[9], payload[ihl:], src, dst)
	case 0x86dd:
		pkt.EtherType = "IPv6"
		if len(payload) < 40 {
			return pkt, true
		}
		src := net.IP(payload[8:24]).String()
		dst := net.IP(payload[24:40]).String()
		pkt.Protocol, pkt.Src, pkt.Dst = transport(payload[6], payload[40:], src, dst)
	case 0x0806:
		pkt.EtherType = "ARP"
	default:
		pkt.EtherType = fmt.Sprintf("0x%04x", etherType)
	}
	return pkt, true
}

func transport(proto byte, seg []byte, src, dst string) (string, string, string) {
	name := map[byte]string{1: "ICMP", 6: "TCP", 17: "UDP", 58: "ICMPv6"}[proto]
	if name == "" {
		name = fmt.Sprintf("proto-%d", proto)
	}
	if (proto == 6 || proto == 17) && len(seg) >= 4 {
		sp := binary.BigEndian.Uint16(seg[0:2])
		dp := binary.BigEndian.Uint16(seg[2:4])
		return name, net.JoinHostPort(src, fmt.Sprint(sp)), net.JoinHostPort(dst, fmt.Sprint(dp))
	}
	return name, src, dst
}

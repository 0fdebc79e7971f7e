package capture

import (
	"fmt"
	"sort"
	"strings"

	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"
	"golang.org/x/net/bpf"
)

// compileBPF compiles a pcap filter expression into raw BPF instructions
// suitable for an AF_PACKET socket.
func compileBPF(filter string, snapLen int) ([]bpf.RawInstruction, error) {
	pcapBPF, err := pcap.CompileBPFFilter(layers.LinkTypeEthernet, snapLen, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to compile BPF filter: %w", err)
	}

	raw := make([]bpf.RawInstruction, len(pcapBPF))
	for i, ins := range pcapBPF {
		raw[i] = bpf.RawInstruction{Op: ins.Code, Jt: ins.Jt, Jf: ins.Jf, K: ins.K}
	}
	return raw, nil
}

// portsFilter builds a pcap filter expression matching TCP traffic on the
// given server ports.
func portsFilter(ports []uint16) string {
	if len(ports) == 0 {
		return "tcp"
	}
	sorted := append([]uint16(nil), ports...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	terms := make([]string, len(sorted))
	for i, p := range sorted {
		terms[i] = fmt.Sprintf("tcp port %d", p)
	}
	return strings.Join(terms, " or ")
}

package capture

import (
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/tcpassembly"

	"firestige.xyz/argus/internal/engine"
	"firestige.xyz/argus/internal/protocols"
	"firestige.xyz/argus/internal/protocols/cql"
)

// conn is the decode state of one monitored TCP connection. Both
// unidirectional halves created by the assembler feed the same stream.
type conn struct {
	key    string
	client string
	server string

	stream *engine.Stream[cql.Frame, cql.Record, protocols.NoState]

	lastActivityNs int64
	// stats snapshot from the previous metrics flush, for delta updates
	lastStats engine.Stats
}

// connTable tracks live connections keyed by their canonical
// client->server endpoint pair. It is owned by the agent goroutine and
// needs no locking.
type connTable struct {
	conns       map[string]*conn
	serverPorts map[uint16]bool
	engineOpts  engine.Options
}

func newConnTable(serverPorts []uint16, opts engine.Options) *connTable {
	set := make(map[uint16]bool, len(serverPorts))
	for _, p := range serverPorts {
		set[p] = true
	}
	return &connTable{
		conns:       make(map[string]*conn),
		serverPorts: set,
		engineOpts:  opts,
	}
}

// endpointPort extracts the TCP port from a gopacket transport endpoint.
func endpointPort(e gopacket.Endpoint) uint16 {
	raw := e.Raw()
	if len(raw) != 2 {
		return 0
	}
	return uint16(raw[0])<<8 | uint16(raw[1])
}

// classify determines the traffic direction of a unidirectional flow by
// which side holds a configured server port. Flows touching no server
// port are not ours and return false.
func (t *connTable) classify(transport gopacket.Flow) (protocols.Direction, bool) {
	dstIsServer := t.serverPorts[endpointPort(transport.Dst())]
	srcIsServer := t.serverPorts[endpointPort(transport.Src())]
	switch {
	case dstIsServer && !srcIsServer:
		return protocols.DirectionRequest, true
	case srcIsServer && !dstIsServer:
		return protocols.DirectionResponse, true
	default:
		return 0, false
	}
}

// getOrCreate returns the connection owning the given unidirectional
// flow, creating it on first sight. The key is canonical: both halves of
// a connection map to the same entry.
func (t *connTable) getOrCreate(net, transport gopacket.Flow, dir protocols.Direction) *conn {
	clientEP := fmt.Sprintf("%s:%s", net.Src(), transport.Src())
	serverEP := fmt.Sprintf("%s:%s", net.Dst(), transport.Dst())
	if dir == protocols.DirectionResponse {
		clientEP, serverEP = serverEP, clientEP
	}
	key := clientEP + "->" + serverEP

	if c, ok := t.conns[key]; ok {
		return c
	}
	c := &conn{
		key:    key,
		client: clientEP,
		server: serverEP,
		stream: engine.New[cql.Frame, cql.Record, protocols.NoState](cql.StreamParser{}, t.engineOpts),
	}
	t.conns[key] = c
	return c
}

// evictIdle removes connections with no traffic since the cutoff and
// returns them so their pending frames get one final stitch.
func (t *connTable) evictIdle(cutoffNs int64) []*conn {
	var evicted []*conn
	for key, c := range t.conns {
		if c.lastActivityNs < cutoffNs {
			evicted = append(evicted, c)
			delete(t.conns, key)
		}
	}
	return evicted
}

func (t *connTable) size() int { return len(t.conns) }

// halfStream receives the reassembled bytes of one direction of one
// connection and forwards them into the shared decode stream.
type halfStream struct {
	conn *conn
	dir  protocols.Direction
}

// Reassembled implements tcpassembly.Stream.
func (h *halfStream) Reassembled(reassembled []tcpassembly.Reassembly) {
	for _, r := range reassembled {
		if len(r.Bytes) == 0 {
			continue
		}
		ts := r.Seen.UnixNano()
		h.conn.stream.Append(h.dir, r.Bytes, ts)
		if ts > h.conn.lastActivityNs {
			h.conn.lastActivityNs = ts
		}
	}
}

// ReassemblyComplete implements tcpassembly.Stream.
func (h *halfStream) ReassemblyComplete() {}

// streamFactory hands each new unidirectional flow to the connection
// table. Implements tcpassembly.StreamFactory.
type streamFactory struct {
	table *connTable
}

// New implements tcpassembly.StreamFactory. Flows not touching a
// configured server port get a discarding stream.
func (f *streamFactory) New(net, transport gopacket.Flow) tcpassembly.Stream {
	dir, ok := f.table.classify(transport)
	if !ok {
		return discardStream{}
	}
	return &halfStream{conn: f.table.getOrCreate(net, transport, dir), dir: dir}
}

// discardStream swallows flows outside the monitored port set. The BPF
// filter normally keeps these off the wire already.
type discardStream struct{}

func (discardStream) Reassembled([]tcpassembly.Reassembly) {}
func (discardStream) ReassemblyComplete()                  {}

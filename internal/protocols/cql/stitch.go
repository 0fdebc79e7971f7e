package cql

import "firestige.xyz/argus/internal/protocols"

// StitchFrames correlates parsed responses with their requests by stream
// id, the protocol's correlation id. Server-pushed EVENT frames have no
// request and become response-only records. A response whose stream id has
// no outstanding request counts as an error and is dropped; unmatched
// requests stay queued for a later invocation. The response queue is
// drained on every call, so repeated invocation with no new frames yields
// no additional records.
func (StreamParser) StitchFrames(reqs, resps *[]Frame, _ *protocols.NoState) protocols.RecordsWithErrorCount[Record] {
	var result protocols.RecordsWithErrorCount[Record]

	// Index the oldest outstanding request per stream id. The protocol
	// forbids reusing a stream id while a request is in flight, so one
	// slot per id suffices.
	outstanding := make(map[int16]*Frame, len(*reqs))
	for i := range *reqs {
		req := &(*reqs)[i]
		if req.consumed {
			continue
		}
		if _, ok := outstanding[req.Hdr.Stream]; !ok {
			outstanding[req.Hdr.Stream] = req
		}
	}

	for i := range *resps {
		resp := &(*resps)[i]
		if resp.Hdr.Opcode == OpEvent {
			result.Records = append(result.Records, Record{Resp: *resp})
			continue
		}
		req, ok := outstanding[resp.Hdr.Stream]
		if !ok {
			result.ErrorCount++
			continue
		}
		req.consumed = true
		delete(outstanding, resp.Hdr.Stream)
		result.Records = append(result.Records, Record{Req: *req, Resp: *resp})
	}

	*resps = (*resps)[:0]

	// Compact matched requests out of the queue in place.
	kept := (*reqs)[:0]
	for _, req := range *reqs {
		if !req.consumed {
			kept = append(kept, req)
		}
	}
	*reqs = kept

	return result
}

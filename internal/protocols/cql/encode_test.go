package cql

import "encoding/binary"

// Test-only wire encoder. Used to build fixtures and to verify that
// encode-then-decode reproduces the original field values exactly.

func encodeShort(v uint16) []byte {
	b := make([]byte, 2)
	binary.BigEndian.PutUint16(b, v)
	return b
}

func encodeInt(v int32) []byte {
	b := make([]byte, 4)
	binary.BigEndian.PutUint32(b, uint32(v))
	return b
}

func encodeLong(v int64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(v))
	return b
}

func encodeString(s string) []byte {
	return append(encodeShort(uint16(len(s))), s...)
}

func encodeLongString(s string) []byte {
	return append(encodeInt(int32(len(s))), s...)
}

func encodeBytes(b []byte) []byte {
	return append(encodeInt(int32(len(b))), b...)
}

func encodeShortBytes(b []byte) []byte {
	return append(encodeShort(uint16(len(b))), b...)
}

func encodeStringList(list []string) []byte {
	out := encodeShort(uint16(len(list)))
	for _, s := range list {
		out = append(out, encodeString(s)...)
	}
	return out
}

func encodeOption(opt Option) []byte {
	out := encodeShort(uint16(opt.Type))
	if opt.Type == TypeCustom {
		out = append(out, encodeString(opt.Value)...)
	}
	return out
}

func encodeQueryParameters(qp QueryParameters) []byte {
	out := encodeShort(qp.Consistency)
	out = append(out, qp.Flags)
	if qp.Flags&queryFlagValues != 0 {
		out = append(out, encodeShort(uint16(len(qp.Values)))...)
		for i, v := range qp.Values {
			if qp.Flags&queryFlagNamesForValues != 0 {
				out = append(out, encodeString(qp.Names[i])...)
			}
			out = append(out, encodeBytes(v)...)
		}
	}
	if qp.Flags&queryFlagPageSize != 0 {
		out = append(out, encodeInt(qp.PageSize)...)
	}
	if qp.Flags&queryFlagWithPagingState != 0 {
		out = append(out, encodeBytes(qp.PagingState)...)
	}
	if qp.Flags&queryFlagSerialConsistency != 0 {
		out = append(out, encodeShort(qp.SerialConsistency)...)
	}
	if qp.Flags&queryFlagDefaultTimestamp != 0 {
		out = append(out, encodeLong(qp.Timestamp)...)
	}
	return out
}

func encodeResultMetadata(md ResultMetadata) []byte {
	out := encodeInt(int32(md.Flags))
	out = append(out, encodeInt(md.ColumnsCount)...)
	if md.Flags&resultFlagHasMorePages != 0 {
		out = append(out, encodeBytes(md.PagingState)...)
	}
	if md.Flags&resultFlagNoMetadata != 0 {
		return out
	}
	global := md.Flags&resultFlagGlobalTableSpec != 0
	if global {
		out = append(out, encodeString(md.GTSKeyspaceName)...)
		out = append(out, encodeString(md.GTSTableName)...)
	}
	for _, spec := range md.ColSpecs {
		if !global {
			out = append(out, encodeString(spec.Keyspace)...)
			out = append(out, encodeString(spec.Table)...)
		}
		out = append(out, encodeString(spec.Name)...)
		out = append(out, encodeOption(spec.Type)...)
	}
	return out
}

// encodeFrame builds a full frame (header plus body) for parser tests.
func encodeFrame(version Version, stream int16, op Opcode, body []byte) []byte {
	out := []byte{byte(version), 0x00}
	out = append(out, byte(stream>>8), byte(stream))
	out = append(out, byte(op))
	out = append(out, encodeInt(int32(len(body)))...)
	return append(out, body...)
}

package cql

import (
	"bytes"
	"encoding/binary"

	"github.com/google/uuid"
)

// TypeDecoder is a read-only cursor over an untrusted byte span. Every
// extraction either advances the cursor by exactly the bytes consumed and
// returns a value, or reports an error with the cursor restored to where
// the extraction started, so a caller may retry once more bytes arrive.
// The decoder borrows the span and never copies it except into returned
// values.
type TypeDecoder struct {
	buf []byte
	pos int
}

// NewTypeDecoder creates a decoder positioned at the start of buf.
func NewTypeDecoder(buf []byte) *TypeDecoder {
	return &TypeDecoder{buf: buf}
}

// EOF reports whether the cursor has consumed the whole span.
func (d *TypeDecoder) EOF() bool { return d.pos == len(d.buf) }

func (d *TypeDecoder) remaining() int { return len(d.buf) - d.pos }

// take returns the next n bytes of the span without copying and advances
// the cursor, or fails without moving it.
func (d *TypeDecoder) take(n int) ([]byte, error) {
	if n < 0 || d.remaining() < n {
		return nil, ErrInsufficientData
	}
	b := d.buf[d.pos : d.pos+n]
	d.pos += n
	return b, nil
}

// ExtractByte reads one byte.
func (d *TypeDecoder) ExtractByte() (byte, error) {
	b, err := d.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ExtractShort reads a 2-byte big-endian unsigned integer.
func (d *TypeDecoder) ExtractShort() (uint16, error) {
	b, err := d.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// ExtractInt reads a 4-byte big-endian signed integer.
func (d *TypeDecoder) ExtractInt() (int32, error) {
	b, err := d.take(4)
	if err != nil {
		return 0, err
	}
	return int32(binary.BigEndian.Uint32(b)), nil
}

// ExtractLong reads an 8-byte big-endian signed integer.
func (d *TypeDecoder) ExtractLong() (int64, error) {
	b, err := d.take(8)
	if err != nil {
		return 0, err
	}
	return int64(binary.BigEndian.Uint64(b)), nil
}

// ExtractString reads a 2-byte unsigned length followed by that many bytes
// of text.
func (d *TypeDecoder) ExtractString() (string, error) {
	mark := d.pos
	n, err := d.ExtractShort()
	if err != nil {
		return "", err
	}
	b, err := d.take(int(n))
	if err != nil {
		d.pos = mark
		return "", err
	}
	return string(b), nil
}

// ExtractLongString reads a 4-byte signed length followed by that many
// bytes of text. A negative length yields an empty string rather than an
// error; permissive real-world encoders emit such lengths and downstream
// decoders depend on this leniency.
func (d *TypeDecoder) ExtractLongString() (string, error) {
	mark := d.pos
	n, err := d.ExtractInt()
	if err != nil {
		return "", err
	}
	if n < 0 {
		return "", nil
	}
	b, err := d.take(int(n))
	if err != nil {
		d.pos = mark
		return "", err
	}
	return string(b), nil
}

// ExtractBytes reads a 4-byte signed length followed by that many raw
// bytes. Negative lengths yield an empty result, matching
// ExtractLongString.
func (d *TypeDecoder) ExtractBytes() ([]byte, error) {
	mark := d.pos
	n, err := d.ExtractInt()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		return []byte{}, nil
	}
	b, err := d.take(int(n))
	if err != nil {
		d.pos = mark
		return nil, err
	}
	return bytes.Clone(b), nil
}

// ExtractShortBytes reads a 2-byte unsigned length followed by that many
// raw bytes.
func (d *TypeDecoder) ExtractShortBytes() ([]byte, error) {
	mark := d.pos
	n, err := d.ExtractShort()
	if err != nil {
		return nil, err
	}
	b, err := d.take(int(n))
	if err != nil {
		d.pos = mark
		return nil, err
	}
	return bytes.Clone(b), nil
}

// ExtractStringList reads a 2-byte count followed by that many strings.
func (d *TypeDecoder) ExtractStringList() ([]string, error) {
	mark := d.pos
	n, err := d.ExtractShort()
	if err != nil {
		return nil, err
	}
	list := make([]string, 0, n)
	for i := 0; i < int(n); i++ {
		s, err := d.ExtractString()
		if err != nil {
			d.pos = mark
			return nil, err
		}
		list = append(list, s)
	}
	return list, nil
}

// ExtractStringMap reads a 2-byte pair count followed by that many
// key/value string pairs. Duplicate keys are not rejected; the association
// is unordered.
func (d *TypeDecoder) ExtractStringMap() (map[string]string, error) {
	mark := d.pos
	n, err := d.ExtractShort()
	if err != nil {
		return nil, err
	}
	m := make(map[string]string, n)
	for i := 0; i < int(n); i++ {
		k, err := d.ExtractString()
		if err != nil {
			d.pos = mark
			return nil, err
		}
		v, err := d.ExtractString()
		if err != nil {
			d.pos = mark
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// ExtractStringMultiMap is like ExtractStringMap but each value is a
// string list.
func (d *TypeDecoder) ExtractStringMultiMap() (map[string][]string, error) {
	mark := d.pos
	n, err := d.ExtractShort()
	if err != nil {
		return nil, err
	}
	m := make(map[string][]string, n)
	for i := 0; i < int(n); i++ {
		k, err := d.ExtractString()
		if err != nil {
			d.pos = mark
			return nil, err
		}
		v, err := d.ExtractStringList()
		if err != nil {
			d.pos = mark
			return nil, err
		}
		m[k] = v
	}
	return m, nil
}

// ExtractUUID reads 16 raw bytes as a UUID.
func (d *TypeDecoder) ExtractUUID() (uuid.UUID, error) {
	b, err := d.take(16)
	if err != nil {
		return uuid.UUID{}, err
	}
	return uuid.UUID(b), nil
}

// ExtractInet reads a 1-byte address size, that many address bytes, and a
// 4-byte port.
func (d *TypeDecoder) ExtractInet() (Inet, error) {
	mark := d.pos
	n, err := d.ExtractByte()
	if err != nil {
		return Inet{}, err
	}
	if n != 4 && n != 16 {
		d.pos = mark
		return Inet{}, ErrMalformed
	}
	addr, err := d.take(int(n))
	if err != nil {
		d.pos = mark
		return Inet{}, err
	}
	port, err := d.ExtractInt()
	if err != nil {
		d.pos = mark
		return Inet{}, err
	}
	return Inet{Addr: bytes.Clone(addr), Port: port}, nil
}

// ExtractOption reads a 2-byte type id. The custom variant additionally
// carries an inline type-name string; all other known types leave Value
// empty. Unknown type ids are a decode error, not a warning.
func (d *TypeDecoder) ExtractOption() (Option, error) {
	mark := d.pos
	id, err := d.ExtractShort()
	if err != nil {
		return Option{}, err
	}
	t := DataType(id)
	if !t.IsValid() {
		d.pos = mark
		return Option{}, ErrUnknownType
	}
	opt := Option{Type: t}
	if t == TypeCustom {
		name, err := d.ExtractString()
		if err != nil {
			d.pos = mark
			return Option{}, err
		}
		opt.Value = name
	}
	return opt, nil
}

// Flag bits of the QUERY/EXECUTE parameter block.
const (
	queryFlagValues            = 0x01
	queryFlagSkipMetadata      = 0x02
	queryFlagPageSize          = 0x04
	queryFlagWithPagingState   = 0x08
	queryFlagSerialConsistency = 0x10
	queryFlagDefaultTimestamp  = 0x20
	queryFlagNamesForValues    = 0x40
)

// ExtractQueryParameters decodes the parameter block of a QUERY or EXECUTE
// body. Field presence is governed by the flags byte captured up front;
// the decode order is fixed by the protocol. The decode is atomic: any
// sub-field failure fails the whole call with the cursor restored.
func (d *TypeDecoder) ExtractQueryParameters() (QueryParameters, error) {
	mark := d.pos
	qp := QueryParameters{PageSize: -1}

	var err error
	if qp.Consistency, err = d.ExtractShort(); err != nil {
		return QueryParameters{}, err
	}
	if qp.Flags, err = d.ExtractByte(); err != nil {
		d.pos = mark
		return QueryParameters{}, err
	}

	if qp.Flags&queryFlagValues != 0 {
		n, err := d.ExtractShort()
		if err != nil {
			d.pos = mark
			return QueryParameters{}, err
		}
		for i := 0; i < int(n); i++ {
			if qp.Flags&queryFlagNamesForValues != 0 {
				name, err := d.ExtractString()
				if err != nil {
					d.pos = mark
					return QueryParameters{}, err
				}
				qp.Names = append(qp.Names, name)
			}
			value, err := d.ExtractBytes()
			if err != nil {
				d.pos = mark
				return QueryParameters{}, err
			}
			qp.Values = append(qp.Values, value)
		}
	}
	if qp.Flags&queryFlagPageSize != 0 {
		if qp.PageSize, err = d.ExtractInt(); err != nil {
			d.pos = mark
			return QueryParameters{}, err
		}
	}
	if qp.Flags&queryFlagWithPagingState != 0 {
		if qp.PagingState, err = d.ExtractBytes(); err != nil {
			d.pos = mark
			return QueryParameters{}, err
		}
	}
	if qp.Flags&queryFlagSerialConsistency != 0 {
		if qp.SerialConsistency, err = d.ExtractShort(); err != nil {
			d.pos = mark
			return QueryParameters{}, err
		}
	}
	if qp.Flags&queryFlagDefaultTimestamp != 0 {
		if qp.Timestamp, err = d.ExtractLong(); err != nil {
			d.pos = mark
			return QueryParameters{}, err
		}
	}
	return qp, nil
}

// Flag bits of the RESULT rows metadata block.
const (
	resultFlagGlobalTableSpec = 0x0001
	resultFlagHasMorePages    = 0x0002
	resultFlagNoMetadata      = 0x0004
)

// ExtractResultMetadata decodes the column metadata of a RESULT rows body.
// The number of decoded column specs must equal the declared count; a
// mismatch is a malformed-message error, never a silent truncation.
func (d *TypeDecoder) ExtractResultMetadata() (ResultMetadata, error) {
	mark := d.pos
	var md ResultMetadata

	flags, err := d.ExtractInt()
	if err != nil {
		return ResultMetadata{}, err
	}
	md.Flags = uint32(flags)
	if md.ColumnsCount, err = d.ExtractInt(); err != nil {
		d.pos = mark
		return ResultMetadata{}, err
	}
	if md.ColumnsCount < 0 {
		d.pos = mark
		return ResultMetadata{}, ErrMalformed
	}

	if md.Flags&resultFlagHasMorePages != 0 {
		if md.PagingState, err = d.ExtractBytes(); err != nil {
			d.pos = mark
			return ResultMetadata{}, err
		}
	}
	if md.Flags&resultFlagNoMetadata != 0 {
		return md, nil
	}

	globalTableSpec := md.Flags&resultFlagGlobalTableSpec != 0
	if globalTableSpec {
		if md.GTSKeyspaceName, err = d.ExtractString(); err != nil {
			d.pos = mark
			return ResultMetadata{}, err
		}
		if md.GTSTableName, err = d.ExtractString(); err != nil {
			d.pos = mark
			return ResultMetadata{}, err
		}
	}

	// A column spec is at least a name length prefix plus a type id. A
	// declared count the remaining bytes cannot possibly hold is a lie,
	// not a short read; reject it before sizing anything by it.
	const colSpecMinLength = 4
	if md.ColumnsCount > int32(d.remaining()/colSpecMinLength) {
		d.pos = mark
		return ResultMetadata{}, ErrMalformed
	}

	md.ColSpecs = make([]ColSpec, 0, md.ColumnsCount)
	for i := int32(0); i < md.ColumnsCount; i++ {
		var spec ColSpec
		if !globalTableSpec {
			if spec.Keyspace, err = d.ExtractString(); err != nil {
				d.pos = mark
				return ResultMetadata{}, err
			}
			if spec.Table, err = d.ExtractString(); err != nil {
				d.pos = mark
				return ResultMetadata{}, err
			}
		}
		if spec.Name, err = d.ExtractString(); err != nil {
			d.pos = mark
			return ResultMetadata{}, err
		}
		if spec.Type, err = d.ExtractOption(); err != nil {
			d.pos = mark
			return ResultMetadata{}, err
		}
		md.ColSpecs = append(md.ColSpecs, spec)
	}
	if len(md.ColSpecs) != int(md.ColumnsCount) {
		d.pos = mark
		return ResultMetadata{}, ErrMalformed
	}
	return md, nil
}

// Package cql decodes the Cassandra native wire protocol (v3/v4) from
// passively captured byte streams. It implements the protocols.Parser
// contract: strict length-prefixed, tag-typed decoding with explicit
// resynchronization, and stream-id based request/response stitching.
package cql

import "fmt"

// Version is the raw version byte of a frame header. The high bit carries
// the direction: clear for requests, set for responses.
type Version byte

const (
	versionDirectionMask = 0x80
	versionNumberMask    = 0x7f

	minProtocolVersion = 3
	maxProtocolVersion = 4
)

// IsResponse reports whether the direction bit marks a server-to-client
// frame.
func (v Version) IsResponse() bool { return v&versionDirectionMask != 0 }

// Number returns the protocol version with the direction bit stripped.
func (v Version) Number() int { return int(v & versionNumberMask) }

// Opcode identifies the message kind of a frame.
type Opcode byte

const (
	OpError         Opcode = 0x00
	OpStartup       Opcode = 0x01
	OpReady         Opcode = 0x02
	OpAuthenticate  Opcode = 0x03
	OpOptions       Opcode = 0x05
	OpSupported     Opcode = 0x06
	OpQuery         Opcode = 0x07
	OpResult        Opcode = 0x08
	OpPrepare       Opcode = 0x09
	OpExecute       Opcode = 0x0a
	OpRegister      Opcode = 0x0b
	OpEvent         Opcode = 0x0c
	OpBatch         Opcode = 0x0d
	OpAuthChallenge Opcode = 0x0e
	OpAuthResponse  Opcode = 0x0f
	OpAuthSuccess   Opcode = 0x10
)

var opcodeNames = map[Opcode]string{
	OpError:         "ERROR",
	OpStartup:       "STARTUP",
	OpReady:         "READY",
	OpAuthenticate:  "AUTHENTICATE",
	OpOptions:       "OPTIONS",
	OpSupported:     "SUPPORTED",
	OpQuery:         "QUERY",
	OpResult:        "RESULT",
	OpPrepare:       "PREPARE",
	OpExecute:       "EXECUTE",
	OpRegister:      "REGISTER",
	OpEvent:         "EVENT",
	OpBatch:         "BATCH",
	OpAuthChallenge: "AUTH_CHALLENGE",
	OpAuthResponse:  "AUTH_RESPONSE",
	OpAuthSuccess:   "AUTH_SUCCESS",
}

func (o Opcode) String() string {
	if name, ok := opcodeNames[o]; ok {
		return name
	}
	return fmt.Sprintf("UNKNOWN_OP_0x%02x", byte(o))
}

// Opcodes legal in client-to-server frames.
var requestOpcodes = map[Opcode]bool{
	OpStartup:      true,
	OpAuthResponse: true,
	OpOptions:      true,
	OpQuery:        true,
	OpPrepare:      true,
	OpExecute:      true,
	OpBatch:        true,
	OpRegister:     true,
}

// Opcodes legal in server-to-client frames.
var responseOpcodes = map[Opcode]bool{
	OpError:         true,
	OpReady:         true,
	OpAuthenticate:  true,
	OpSupported:     true,
	OpResult:        true,
	OpEvent:         true,
	OpAuthChallenge: true,
	OpAuthSuccess:   true,
}

// IsRequest reports whether the opcode is legal in a request frame.
func (o Opcode) IsRequest() bool { return requestOpcodes[o] }

// IsResponse reports whether the opcode is legal in a response frame.
func (o Opcode) IsResponse() bool { return responseOpcodes[o] }

// DataType is the protocol's 16-bit column/parameter type-id space.
type DataType uint16

const (
	TypeCustom    DataType = 0x0000
	TypeAscii     DataType = 0x0001
	TypeBigint    DataType = 0x0002
	TypeBlob      DataType = 0x0003
	TypeBoolean   DataType = 0x0004
	TypeCounter   DataType = 0x0005
	TypeDecimal   DataType = 0x0006
	TypeDouble    DataType = 0x0007
	TypeFloat     DataType = 0x0008
	TypeInt       DataType = 0x0009
	TypeTimestamp DataType = 0x000b
	TypeUUID      DataType = 0x000c
	TypeVarchar   DataType = 0x000d
	TypeVarint    DataType = 0x000e
	TypeTimeuuid  DataType = 0x000f
	TypeInet      DataType = 0x0010
	TypeList      DataType = 0x0020
	TypeMap       DataType = 0x0021
	TypeSet       DataType = 0x0022
	TypeUDT       DataType = 0x0030
	TypeTuple     DataType = 0x0031
)

var dataTypeNames = map[DataType]string{
	TypeCustom:    "custom",
	TypeAscii:     "ascii",
	TypeBigint:    "bigint",
	TypeBlob:      "blob",
	TypeBoolean:   "boolean",
	TypeCounter:   "counter",
	TypeDecimal:   "decimal",
	TypeDouble:    "double",
	TypeFloat:     "float",
	TypeInt:       "int",
	TypeTimestamp: "timestamp",
	TypeUUID:      "uuid",
	TypeVarchar:   "varchar",
	TypeVarint:    "varint",
	TypeTimeuuid:  "timeuuid",
	TypeInet:      "inet",
	TypeList:      "list",
	TypeMap:       "map",
	TypeSet:       "set",
	TypeUDT:       "udt",
	TypeTuple:     "tuple",
}

// IsValid reports whether the type id belongs to the closed enumeration.
func (t DataType) IsValid() bool {
	_, ok := dataTypeNames[t]
	return ok
}

func (t DataType) String() string {
	if name, ok := dataTypeNames[t]; ok {
		return name
	}
	return fmt.Sprintf("unknown_type_0x%04x", uint16(t))
}

// Option is a tagged type descriptor. Value is populated only for types
// carrying inline metadata (the custom type name); empty otherwise.
type Option struct {
	Type  DataType
	Value string
}

// ColSpec describes one column of a result set. Keyspace and Table are
// empty when the enclosing metadata carries a global table spec.
type ColSpec struct {
	Keyspace string
	Table    string
	Name     string
	Type     Option
}

// ResultMetadata is the column metadata block of a RESULT frame.
type ResultMetadata struct {
	Flags           uint32
	ColumnsCount    int32
	PagingState     []byte
	GTSKeyspaceName string
	GTSTableName    string
	ColSpecs        []ColSpec
}

// QueryParameters is the parameter block of QUERY and EXECUTE frames.
// Optional fields are present iff their flag bit is set; PageSize is -1
// when absent.
type QueryParameters struct {
	Consistency       uint16
	Flags             byte
	Names             []string
	Values            [][]byte
	PageSize          int32
	PagingState       []byte
	SerialConsistency uint16
	Timestamp         int64
}

// Inet is a decoded address/port pair.
type Inet struct {
	Addr []byte // 4 or 16 bytes
	Port int32
}

// FrameHeader is the fixed 9-byte header of every native-protocol frame.
type FrameHeader struct {
	Version Version
	Flags   byte
	Stream  int16
	Opcode  Opcode
	Length  int32
}

// Frame is one structurally complete protocol message. Immutable once
// constructed; Msg holds the raw body bytes.
type Frame struct {
	Hdr         FrameHeader
	Msg         []byte
	TimestampNs int64

	// stitching bookkeeping, set once the frame has been matched
	consumed bool
}

// SetTimestampNs implements protocols.Timestamper.
func (f *Frame) SetTimestampNs(ts int64) { f.TimestampNs = ts }

// Record is one correlated transaction: a request/response pair, or a
// response-only entry for server-pushed EVENT frames (Req left zero).
type Record struct {
	Req  Frame
	Resp Frame
}

// LatencyNs is the capture-time distance between request and response.
// Zero for response-only records.
func (r Record) LatencyNs() int64 {
	if r.Req.TimestampNs == 0 {
		return 0
	}
	return r.Resp.TimestampNs - r.Req.TimestampNs
}

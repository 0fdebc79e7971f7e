package cql

// Message-body decoders for the opcodes whose content enriches
// transaction records. Each decodes from the start of a frame body and
// reports failures with the TypeDecoder error kinds; callers treat a
// failed body decode as a record without the enrichment, never as a
// dropped record.

// QueryInfo is the decoded body of a QUERY frame.
type QueryInfo struct {
	Query  string
	Params QueryParameters
}

// ExtractQueryBody decodes a QUERY body: the statement text followed by
// its parameter block.
func ExtractQueryBody(msg []byte) (QueryInfo, error) {
	d := NewTypeDecoder(msg)
	var qi QueryInfo
	var err error
	if qi.Query, err = d.ExtractLongString(); err != nil {
		return QueryInfo{}, err
	}
	if qi.Params, err = d.ExtractQueryParameters(); err != nil {
		return QueryInfo{}, err
	}
	return qi, nil
}

// ExtractPrepareBody decodes a PREPARE body: the statement text.
func ExtractPrepareBody(msg []byte) (string, error) {
	return NewTypeDecoder(msg).ExtractLongString()
}

// Result kinds of a RESULT body.
const (
	ResultKindVoid         int32 = 0x0001
	ResultKindRows         int32 = 0x0002
	ResultKindSetKeyspace  int32 = 0x0003
	ResultKindPrepared     int32 = 0x0004
	ResultKindSchemaChange int32 = 0x0005
)

// ResultInfo is the decoded head of a RESULT body. Metadata is populated
// for rows results, Keyspace for set-keyspace results; void, prepared and
// schema-change results carry only the kind.
type ResultInfo struct {
	Kind     int32
	Metadata ResultMetadata
	Keyspace string
}

// ExtractResultBody decodes the head of a RESULT body.
func ExtractResultBody(msg []byte) (ResultInfo, error) {
	d := NewTypeDecoder(msg)
	var ri ResultInfo
	var err error
	if ri.Kind, err = d.ExtractInt(); err != nil {
		return ResultInfo{}, err
	}
	switch ri.Kind {
	case ResultKindRows:
		if ri.Metadata, err = d.ExtractResultMetadata(); err != nil {
			return ResultInfo{}, err
		}
	case ResultKindSetKeyspace:
		if ri.Keyspace, err = d.ExtractString(); err != nil {
			return ResultInfo{}, err
		}
	}
	return ri, nil
}

// ErrorInfo is the decoded head of an ERROR body.
type ErrorInfo struct {
	Code    int32
	Message string
}

// ExtractErrorBody decodes the error code and message of an ERROR body.
func ExtractErrorBody(msg []byte) (ErrorInfo, error) {
	d := NewTypeDecoder(msg)
	var ei ErrorInfo
	var err error
	if ei.Code, err = d.ExtractInt(); err != nil {
		return ErrorInfo{}, err
	}
	if ei.Message, err = d.ExtractString(); err != nil {
		return ErrorInfo{}, err
	}
	return ei, nil
}

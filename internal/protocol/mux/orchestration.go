package mux

import (
	"fmt"
	"math"

	"github.com/danmuck/skmux/internal/protocol"
	"github.com/danmuck/skmux/internal/protocol/wire"
)

// PrivateKeyLen is the width of the key material in a credentials response.
const PrivateKeyLen = 32

const reservedLen = 3

// minBatchEntryLen is a batch entry with four empty strings: sub-tag,
// reserved bytes, since and four u16 prefixes.
const minBatchEntryLen = 1 + reservedLen + 8 + 4*2

// Chunk is one piece of a raw data stream. Fin marks the last chunk.
type Chunk struct {
	Fin     bool
	Payload []byte
}

// NewChunk keeps payload without copying. A nil payload becomes empty, which
// is what Decode returns for a chunk with no data.
func NewChunk(fin bool, payload []byte) Chunk {
	if payload == nil {
		payload = []byte{}
	}
	return Chunk{Fin: fin, Payload: payload}
}

func (Chunk) DataType() DataType { return DataChunk }

func (c Chunk) ToFrame(stream StreamID) Message { return Data{Message: c}.ToFrame(stream) }

func (c Chunk) MarshalBinary() ([]byte, error) { return marshalData(c) }

func (c *Chunk) UnmarshalBinary(b []byte) error { return c.decode(wire.NewReader(b)) }

func (c Chunk) encodeData(w *wire.Writer) error {
	w.Bool(c.Fin)
	w.Raw(c.Payload)
	return nil
}

func (c *Chunk) decode(r *wire.Reader) error {
	flags, err := r.U8()
	if err != nil {
		return protocol.Wrap("chunk", "fin", err)
	}
	*c = Chunk{Fin: flags&0x01 != 0, Payload: r.Rest()}
	return nil
}

// QueryFormat selects how query results are rendered.
type QueryFormat uint8

const (
	QueryJSON QueryFormat = 0x0
	QueryRaw  QueryFormat = 0x1
	QueryCSV  QueryFormat = 0x2
)

func (f QueryFormat) Validate() error {
	switch f {
	case QueryJSON, QueryRaw, QueryCSV:
		return nil
	default:
		return fmt.Errorf("%w: query format %d", protocol.ErrUnknownEnum, uint8(f))
	}
}

func (f QueryFormat) String() string {
	switch f {
	case QueryJSON:
		return "json"
	case QueryRaw:
		return "raw"
	case QueryCSV:
		return "csv"
	default:
		return fmt.Sprintf("format(%d)", uint8(f))
	}
}

type Query struct {
	Format QueryFormat
	Query  string
}

func NewQuery(format QueryFormat, query string) (Query, error) {
	if err := format.Validate(); err != nil {
		return Query{}, protocol.Wrap("query", "format", err)
	}
	return Query{Format: format, Query: query}, nil
}

func (Query) DataType() DataType { return DataQuery }

func (q Query) ToFrame(stream StreamID) Message { return Data{Message: q}.ToFrame(stream) }

func (q Query) MarshalBinary() ([]byte, error) { return marshalData(q) }

func (q *Query) UnmarshalBinary(b []byte) error { return q.decode(wire.NewReader(b)) }

func (q Query) encodeData(w *wire.Writer) error {
	if err := q.Format.Validate(); err != nil {
		return protocol.Wrap("query", "format", err)
	}
	w.Zero(reservedLen)
	w.U8(uint8(q.Format))
	return protocol.Wrap("query", "query", w.String32(q.Query))
}

func (q *Query) decode(r *wire.Reader) error {
	if err := r.Skip(reservedLen); err != nil {
		return protocol.Wrap("query", "reserved", err)
	}
	raw, err := r.U8()
	if err != nil {
		return protocol.Wrap("query", "format", err)
	}
	format := QueryFormat(raw)
	if err := format.Validate(); err != nil {
		return protocol.Wrap("query", "format", err)
	}
	text, err := r.String32()
	if err != nil {
		return protocol.Wrap("query", "query", err)
	}
	*q = Query{Format: format, Query: text}
	return nil
}

// RequestTail subscribes to the changes of one table since a logical offset.
type RequestTail struct {
	Since      uint64
	TableName  string
	Schema     string
	FilterExpr string
	ParamsJSON string
}

func NewRequestTail(since uint64, tableName, schema, filterExpr, paramsJSON string) RequestTail {
	return RequestTail{
		Since:      since,
		TableName:  tableName,
		Schema:     schema,
		FilterExpr: filterExpr,
		ParamsJSON: paramsJSON,
	}
}

func (RequestTail) DataType() DataType { return DataRequestTail }

func (t RequestTail) ToFrame(stream StreamID) Message { return Data{Message: t}.ToFrame(stream) }

func (t RequestTail) MarshalBinary() ([]byte, error) { return marshalData(t) }

func (t *RequestTail) UnmarshalBinary(b []byte) error { return t.decode(wire.NewReader(b)) }

func (t RequestTail) encodeData(w *wire.Writer) error {
	w.Zero(reservedLen)
	w.U64(t.Since)
	if err := w.String16(t.TableName); err != nil {
		return protocol.Wrap("request_tail", "table_name", err)
	}
	if err := w.String16(t.Schema); err != nil {
		return protocol.Wrap("request_tail", "schema", err)
	}
	if err := w.String16(t.FilterExpr); err != nil {
		return protocol.Wrap("request_tail", "filter_expr", err)
	}
	return protocol.Wrap("request_tail", "params_json", w.String16(t.ParamsJSON))
}

func (t *RequestTail) decode(r *wire.Reader) error {
	if err := r.Skip(reservedLen); err != nil {
		return protocol.Wrap("request_tail", "reserved", err)
	}
	var (
		out RequestTail
		err error
	)
	if out.Since, err = r.U64(); err != nil {
		return protocol.Wrap("request_tail", "since", err)
	}
	if out.TableName, err = r.String16(); err != nil {
		return protocol.Wrap("request_tail", "table_name", err)
	}
	if out.Schema, err = r.String16(); err != nil {
		return protocol.Wrap("request_tail", "schema", err)
	}
	if out.FilterExpr, err = r.String16(); err != nil {
		return protocol.Wrap("request_tail", "filter_expr", err)
	}
	if out.ParamsJSON, err = r.String16(); err != nil {
		return protocol.Wrap("request_tail", "params_json", err)
	}
	*t = out
	return nil
}

// PushPromise announces the schemas a client is about to write.
type PushPromise struct {
	Schemas string
}

func NewPushPromise(schemas string) PushPromise {
	return PushPromise{Schemas: schemas}
}

func (PushPromise) DataType() DataType { return DataPushPromise }

func (p PushPromise) ToFrame(stream StreamID) Message { return Data{Message: p}.ToFrame(stream) }

func (p PushPromise) MarshalBinary() ([]byte, error) { return marshalData(p) }

func (p *PushPromise) UnmarshalBinary(b []byte) error { return p.decode(wire.NewReader(b)) }

func (p PushPromise) encodeData(w *wire.Writer) error {
	w.Zero(reservedLen)
	return protocol.Wrap("push_promise", "schemas", w.String32(p.Schemas))
}

func (p *PushPromise) decode(r *wire.Reader) error {
	if err := r.Skip(reservedLen); err != nil {
		return protocol.Wrap("push_promise", "reserved", err)
	}
	schemas, err := r.String32()
	if err != nil {
		return protocol.Wrap("push_promise", "schemas", err)
	}
	*p = PushPromise{Schemas: schemas}
	return nil
}

// SchemaScope selects which kind of object a schema request covers.
type SchemaScope uint8

const (
	ScopeAll   SchemaScope = 0
	ScopeTable SchemaScope = 1
	ScopeView  SchemaScope = 2
)

func (s SchemaScope) Validate() error {
	switch s {
	case ScopeAll, ScopeTable, ScopeView:
		return nil
	default:
		return fmt.Errorf("%w: schema scope %d", protocol.ErrUnknownEnum, uint8(s))
	}
}

func (s SchemaScope) String() string {
	switch s {
	case ScopeAll:
		return "all"
	case ScopeTable:
		return "table"
	case ScopeView:
		return "view"
	default:
		return fmt.Sprintf("scope(%d)", uint8(s))
	}
}

// Schema asks the server for DDL. Name and Suffix may be empty.
type Schema struct {
	Scope  SchemaScope
	Name   string
	Suffix string
}

func NewSchema(scope SchemaScope, name, suffix string) (Schema, error) {
	if err := scope.Validate(); err != nil {
		return Schema{}, protocol.Wrap("schema", "scope", err)
	}
	return Schema{Scope: scope, Name: name, Suffix: suffix}, nil
}

func (Schema) DataType() DataType { return DataSchema }

func (s Schema) ToFrame(stream StreamID) Message { return Data{Message: s}.ToFrame(stream) }

func (s Schema) MarshalBinary() ([]byte, error) { return marshalData(s) }

func (s *Schema) UnmarshalBinary(b []byte) error { return s.decode(wire.NewReader(b)) }

func (s Schema) encodeData(w *wire.Writer) error {
	if err := s.Scope.Validate(); err != nil {
		return protocol.Wrap("schema", "scope", err)
	}
	w.U8(uint8(s.Scope))
	if err := w.String16(s.Name); err != nil {
		return protocol.Wrap("schema", "name", err)
	}
	return protocol.Wrap("schema", "suffix", w.String16(s.Suffix))
}

func (s *Schema) decode(r *wire.Reader) error {
	raw, err := r.U8()
	if err != nil {
		return protocol.Wrap("schema", "scope", err)
	}
	scope := SchemaScope(raw)
	if err := scope.Validate(); err != nil {
		return protocol.Wrap("schema", "scope", err)
	}
	name, err := r.String16()
	if err != nil {
		return protocol.Wrap("schema", "name", err)
	}
	suffix, err := r.String16()
	if err != nil {
		return protocol.Wrap("schema", "suffix", err)
	}
	*s = Schema{Scope: scope, Name: name, Suffix: suffix}
	return nil
}

type CreateDB struct {
	Name string
}

func NewCreateDB(name string) CreateDB {
	return CreateDB{Name: name}
}

func (CreateDB) DataType() DataType { return DataCreateDB }

func (c CreateDB) ToFrame(stream StreamID) Message { return Data{Message: c}.ToFrame(stream) }

func (c CreateDB) MarshalBinary() ([]byte, error) { return marshalData(c) }

func (c *CreateDB) UnmarshalBinary(b []byte) error { return c.decode(wire.NewReader(b)) }

func (c CreateDB) encodeData(w *wire.Writer) error {
	return protocol.Wrap("create_db", "name", w.String16(c.Name))
}

func (c *CreateDB) decode(r *wire.Reader) error {
	name, err := r.String16()
	if err != nil {
		return protocol.Wrap("create_db", "name", err)
	}
	*c = CreateDB{Name: name}
	return nil
}

type CreateUser struct{}

func (CreateUser) DataType() DataType { return DataCreateUser }

func (c CreateUser) ToFrame(stream StreamID) Message { return Data{Message: c}.ToFrame(stream) }

func (CreateUser) MarshalBinary() ([]byte, error) { return []byte{}, nil }

func (*CreateUser) UnmarshalBinary([]byte) error { return nil }

func (CreateUser) encodeData(*wire.Writer) error { return nil }

// RequestTailBatch subscribes to several tables at once. Every entry keeps
// its own RequestTail sub-tag on the wire.
type RequestTailBatch struct {
	Requests []RequestTail
}

func NewRequestTailBatch(requests ...RequestTail) RequestTailBatch {
	if requests == nil {
		requests = []RequestTail{}
	}
	return RequestTailBatch{Requests: requests}
}

func (RequestTailBatch) DataType() DataType { return DataRequestTailBatch }

func (b RequestTailBatch) ToFrame(stream StreamID) Message { return Data{Message: b}.ToFrame(stream) }

func (b RequestTailBatch) MarshalBinary() ([]byte, error) { return marshalData(b) }

func (b *RequestTailBatch) UnmarshalBinary(buf []byte) error { return b.decode(wire.NewReader(buf)) }

func (b RequestTailBatch) encodeData(w *wire.Writer) error {
	if len(b.Requests) > math.MaxUint16 {
		return protocol.Wrap("request_tail_batch", "count", fmt.Errorf("%w: %d requests exceeds u16 count", protocol.ErrFieldTooLong, len(b.Requests)))
	}
	w.U8(0)
	w.U16(uint16(len(b.Requests)))
	for _, req := range b.Requests {
		w.U8(uint8(DataRequestTail))
		if err := req.encodeData(w); err != nil {
			return err
		}
	}
	return nil
}

func (b *RequestTailBatch) decode(r *wire.Reader) error {
	if err := r.Skip(1); err != nil {
		return protocol.Wrap("request_tail_batch", "reserved", err)
	}
	count, err := r.U16()
	if err != nil {
		return protocol.Wrap("request_tail_batch", "count", err)
	}
	requests := make([]RequestTail, 0, min(int(count), r.Len()/minBatchEntryLen))
	for i := 0; i < int(count); i++ {
		field := fmt.Sprintf("requests[%d]", i)
		tag, err := r.U8()
		if err != nil {
			return protocol.Wrap("request_tail_batch", field, err)
		}
		if DataType(tag) != DataRequestTail {
			return protocol.Wrap("request_tail_batch", field, fmt.Errorf("%w: entry tag 0x%02x, want 0x%02x", protocol.ErrTagMismatch, tag, uint8(DataRequestTail)))
		}
		var req RequestTail
		if err := req.decode(r); err != nil {
			return protocol.Wrap("request_tail_batch", field, err)
		}
		requests = append(requests, req)
	}
	*b = RequestTailBatch{Requests: requests}
	return nil
}

// CredentialsResponse returns freshly minted credentials after CreateUser.
type CredentialsResponse struct {
	AccessKey  string
	PrivateKey [PrivateKeyLen]byte
}

func (CredentialsResponse) DataType() DataType { return DataCredentialsResponse }

func (c CredentialsResponse) ToFrame(stream StreamID) Message {
	return Data{Message: c}.ToFrame(stream)
}

func (c CredentialsResponse) MarshalBinary() ([]byte, error) { return marshalData(c) }

func (c *CredentialsResponse) UnmarshalBinary(b []byte) error { return c.decode(wire.NewReader(b)) }

func (c CredentialsResponse) encodeData(w *wire.Writer) error {
	if err := w.FixedString(c.AccessKey, AccessKeyLen); err != nil {
		return protocol.Wrap("credentials_response", "access_key", err)
	}
	w.Raw(c.PrivateKey[:])
	return nil
}

func (c *CredentialsResponse) decode(r *wire.Reader) error {
	var (
		out CredentialsResponse
		err error
	)
	if out.AccessKey, err = r.FixedString(AccessKeyLen); err != nil {
		return protocol.Wrap("credentials_response", "access_key", err)
	}
	if err := r.FixedInto(out.PrivateKey[:]); err != nil {
		return protocol.Wrap("credentials_response", "private_key", err)
	}
	*c = out
	return nil
}

package wal

import (
	"encoding/json"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

var codec = jsoniter.ConfigCompatibleWithStandardLibrary

// Replication marker types as emitted by logger-follow. Only document,
// edge and remove markers carry operations the trigger dispatches; the
// transaction and DDL markers are administrative and skipped.
const (
	markerCollectionCreate = 2000
	markerCollectionDrop   = 2001
	markerCollectionRename = 2002
	markerCollectionChange = 2003
	markerIndexCreate      = 2100
	markerIndexDrop        = 2101
	markerTxnStart         = 2200
	markerTxnCommit        = 2201
	markerTxnAbort         = 2202
	markerDocument         = 2300
	markerEdge             = 2301
	markerRemove           = 2302
)

// RawRecord is one logger-follow line after wire-syntax parsing. Semantic
// decoding into a DocumentOperation happens in DecodeRecord.
type RawRecord struct {
	Tick     string          `json:"tick"`
	Type     int             `json:"type"`
	TID      string          `json:"tid,omitempty"`
	Database string          `json:"database,omitempty"`
	CID      string          `json:"cid,omitempty"`
	CName    string          `json:"cname,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

type recordData struct {
	Key string `json:"_key"`
	Rev string `json:"_rev"`
}

// DecodeError marks one malformed log record. The record is skipped and the
// rest of the batch still processes.
type DecodeError struct {
	RawTick string
	Cause   error
}

func (e *DecodeError) Error() string {
	if e.RawTick != "" {
		return fmt.Sprintf("decode log record at tick %s: %v", e.RawTick, e.Cause)
	}
	return fmt.Sprintf("decode log record: %v", e.Cause)
}

func (e *DecodeError) Unwrap() error {
	return e.Cause
}

func decodeErrorf(tick string, format string, args ...any) error {
	return &DecodeError{RawTick: tick, Cause: fmt.Errorf(format, args...)}
}

// DecodeRecord turns one raw logger-follow line into a DocumentOperation.
// The second return is false for ignorable records (transaction markers,
// DDL, unknown types): those carry no dispatchable operation but the cursor
// still moves past their tick.
//
// A document/edge marker does not distinguish insert from update from
// replace on the wire, so both decode as KindReplace; subscribers use the
// insert-or-replace event group to observe them.
func DecodeRecord(raw []byte) (*DocumentOperation, bool, error) {
	var rec RawRecord
	if err := codec.Unmarshal(raw, &rec); err != nil {
		return nil, false, &DecodeError{Cause: err}
	}

	switch rec.Type {
	case markerDocument, markerEdge, markerRemove:
	default:
		return nil, false, nil
	}

	tick, err := ParsePosition(rec.Tick)
	if err != nil {
		return nil, false, &DecodeError{RawTick: rec.Tick, Cause: err}
	}
	if rec.CName == "" {
		return nil, false, decodeErrorf(rec.Tick, "marker type %d without collection name", rec.Type)
	}
	if len(rec.Data) == 0 {
		return nil, false, decodeErrorf(rec.Tick, "marker type %d without document data", rec.Type)
	}

	var data recordData
	if err = codec.Unmarshal(rec.Data, &data); err != nil {
		return nil, false, &DecodeError{RawTick: rec.Tick, Cause: err}
	}
	if data.Key == "" {
		return nil, false, decodeErrorf(rec.Tick, "marker type %d without document key", rec.Type)
	}

	op := &DocumentOperation{
		Collection: rec.CName,
		Key:        data.Key,
		Revision:   data.Rev,
		Tick:       tick,
	}
	if rec.Type == markerRemove {
		op.Kind = KindRemove
	} else {
		op.Kind = KindReplace
		op.Body = rec.Data
	}
	return op, true, nil
}

package wal

import "encoding/json"

type OperationKind string

const (
	KindInsert  OperationKind = "insert"
	KindUpdate  OperationKind = "update"
	KindReplace OperationKind = "replace"
	KindRemove  OperationKind = "remove"
)

// DocumentOperation is one normalized replication-log event.
type DocumentOperation struct {
	Collection string          `json:"collection"`
	Key        string          `json:"key"`
	Revision   string          `json:"revision,omitempty"`
	Kind       OperationKind   `json:"kind"`
	Tick       Position        `json:"tick"`
	Body       json.RawMessage `json:"body,omitempty"`
}

// LoggerState is the payload of /_api/replication/logger-state, used to
// bootstrap the cursor at the current log head.
type LoggerState struct {
	Running                bool   `json:"running"`
	LastLogTick            string `json:"lastLogTick"`
	LastUncommittedLogTick string `json:"lastUncommittedLogTick"`
	TotalEvents            uint64 `json:"totalEvents"`
	Time                   string `json:"time"`
}

func (s *LoggerState) HeadPosition() (Position, error) {
	return ParsePosition(s.LastLogTick)
}

// FollowBatch is the result of one logger-follow call. Records hold the raw
// NDJSON lines in log order; LastIncluded is zero when the log had nothing
// new past the requested position. FromPresent is false when the server has
// already pruned the requested position out of its log window. CheckMore
// signals that another batch is immediately available.
type FollowBatch struct {
	Records      [][]byte
	LastIncluded Position
	FromPresent  bool
	CheckMore    bool
}

package analytics

import "time"

type EventType string

const (
	EventQueryParsed   EventType = "query_parsed"
	EventQueryRejected EventType = "query_rejected"
)

// QueryEvent describes one compiled (or rejected) advanced query.
type QueryEvent struct {
	Type              EventType `json:"type"`
	Query             string    `json:"query"`
	ErrorCode         string    `json:"errorCode,omitempty"`
	HasAdvancedSyntax bool      `json:"hasAdvancedSyntax"`
	Fields            []string  `json:"fields,omitempty"`
	FieldCount        int       `json:"fieldCount"`
	LatencyUs         int64     `json:"latencyUs"`
	CacheHit          bool      `json:"cacheHit"`
	Timestamp         time.Time `json:"timestamp"`
	RequestID         string    `json:"requestId,omitempty"`
}

// Tracker accepts query events. Implementations must not block.
type Tracker interface {
	Track(event QueryEvent)
}

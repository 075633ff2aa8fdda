package events

import "time"

// EngineProduceStart is emitted before an engine evaluates a query.
type EngineProduceStart struct {
	Query  string
	Anchor string
}

// EngineProduceFinish is emitted after an engine evaluated a query.
type EngineProduceFinish struct {
	Query    string
	Anchor   string
	SQL      string
	Rows     int
	Err      error
	Duration time.Duration
}

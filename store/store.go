// Package store defines the persistence interface for diagnostic events.
package store

import "github.com/jxucoder/tomoru/model"

// EventStore persists diagnostic events about visits and chat exchanges.
// It never holds chat transcripts.
type EventStore interface {
	AddEvent(event *model.Event) error
	ListEvents(visitID string, afterID int64) ([]*model.Event, error)
	RecentEvents(kind string, limit int) ([]*model.Event, error)
	CountEvents(kind string) (int, error)
	Close() error
}

// Package db
package db

import (
	"database/sql"

	"github.com/skyrockethq/skyrocket-trader/internal/candle"
	"github.com/skyrockethq/skyrocket-trader/internal/journal"
	"github.com/skyrockethq/skyrocket-trader/internal/position"
	"github.com/skyrockethq/skyrocket-trader/internal/settings"
)

// Storage is the interface for all persistent storage.
type Storage interface {
	GetDB() *sql.DB
	candle.Storage
	position.Store
	settings.Store
	journal.Journaler
}

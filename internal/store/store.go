// Package store provides persistence for backtest runs and loading of
// historical bar data.
package store

import (
	"context"
	"time"

	"amp-engine/internal/backtest"
)

// RunRecord is one persisted backtest run: the configuration that identifies
// it plus the full result report.
type RunRecord struct {
	ID             string
	LayerID        string
	CreatedAt      time.Time
	Start          time.Time
	End            time.Time
	InitialCapital float64
	Result         *backtest.Result
}

// RunSummary is the listing view of a stored run, without curves or trades.
type RunSummary struct {
	ID          string
	LayerID     string
	CreatedAt   time.Time
	State       backtest.State
	Cancelled   bool
	TotalReturn float64
	SharpeRatio float64
	MaxDrawdown float64
	WinRate     float64
	TradeCount  int
}

// RunFilter narrows ListRuns.
type RunFilter struct {
	LayerID string
	Limit   int
}

// ResultStore persists backtest runs.
type ResultStore interface {
	SaveRun(ctx context.Context, rec *RunRecord) error
	GetRun(ctx context.Context, id string) (*RunRecord, error)
	ListRuns(ctx context.Context, filter RunFilter) ([]RunSummary, error)
	DeleteRun(ctx context.Context, id string) error
	Close() error
}

package api

import (
	"github.com/dmelnik/newswire/app/database"
	"github.com/dmelnik/newswire/app/pipeline"
	"github.com/dmelnik/newswire/app/sources"
)

// RunTrigger is the slice of the scheduler the API needs: start a run if
// none is in flight, and report the last outcome.
type RunTrigger interface {
	TriggerRun() (*pipeline.RunResult, bool)
	LastResult() *pipeline.RunResult
}

var _ RunTrigger = (*pipeline.Scheduler)(nil)

type Pinger interface {
	Ping() error
}

type Handler struct {
	items    database.ItemStore
	registry *sources.Registry
	trigger  RunTrigger
	db       Pinger
}

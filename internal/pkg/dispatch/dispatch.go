package dispatch

import (
	"context"

	"github.com/google/uuid"
	"github.com/ohowland/cgc_opf/internal/pkg/dispatch/dcopf"
	"github.com/ohowland/cgc_opf/internal/pkg/msg"
	"github.com/ohowland/cgc_opf/internal/pkg/powersystem"
)

// Request is one dispatch job.
type Request struct {
	Network powersystem.Network
	Options dcopf.Options
	// Steps are the profile indices to solve. Nil solves the scalar snapshot.
	Steps []int
}

// Dispatcher solves networks and publishes the results.
type Dispatcher interface {
	msg.Publisher
	PID() uuid.UUID
	NewRequest(powersystem.Network) Request
	Dispatch(context.Context, Request) ([]dcopf.Results, error)
	Result(uuid.UUID) (dcopf.Results, bool)
	History() []dcopf.Results
	// Close stops publishing. Subscribers receive what was already
	// published, then their channels close.
	Close()
}

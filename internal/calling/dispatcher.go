package calling

import (
	"context"

	"callpilot/internal/metrics"
	"callpilot/internal/taskqueue"
	"callpilot/pkg/logger"
)

type Outcome string

const (
	OutcomeDispatched Outcome = "dispatched"
	OutcomeDuplicate  Outcome = "duplicate"
	OutcomeFailed     Outcome = "failed"
)

// History answers whether a candidate's application was already interviewed.
type History interface {
	AlreadyInterviewed(ctx context.Context, organizationID, candidateID, applicationID int64) (bool, error)
}

// Dispatcher sends queued calls to the engine at most once per application, unless retried.
type Dispatcher struct {
	history History
	engine  Engine
	queue   taskqueue.Queue
}

func NewDispatcher(history History, engine Engine, queue taskqueue.Queue) *Dispatcher {
	return &Dispatcher{history: history, engine: engine, queue: queue}
}

// Dispatch places the call. A failed engine request is reported, not retried.
// After a placed call the application status update is queued; a queueing failure is only logged.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (Outcome, error) {
	req := call.Request
	log := logger.From(ctx).With(
		"organization_id", req.OrganizationID,
		"application_id", req.ApplicationID,
		"candidate_id", req.CandidateID,
		"is_retry", call.IsRetry,
	)

	if !call.IsRetry {
		taken, err := d.history.AlreadyInterviewed(ctx, req.OrganizationID, req.CandidateID, req.ApplicationID)
		if err != nil {
			metrics.CallDispatches.WithLabelValues(string(OutcomeFailed)).Inc()
			return OutcomeFailed, err
		}
		if taken {
			log.Info("candidate already interviewed, skipping call")
			metrics.CallDispatches.WithLabelValues(string(OutcomeDuplicate)).Inc()
			return OutcomeDuplicate, nil
		}
	}

	if err := d.engine.InitiateCall(ctx, req); err != nil {
		log.Error("initiate call failed", "to", req.ToPhoneNumber, "err", err)
		metrics.CallDispatches.WithLabelValues(string(OutcomeFailed)).Inc()
		return OutcomeFailed, err
	}
	log.Info("call initiated", "to", req.ToPhoneNumber)
	metrics.CallDispatches.WithLabelValues(string(OutcomeDispatched)).Inc()

	update := StatusUpdate{
		OrganizationID: req.OrganizationID,
		ApplicationID:  req.ApplicationID,
		StatusID:       call.StatusID,
	}
	if _, err := d.queue.Enqueue(ctx, taskqueue.KindApplicationStatus, update, 0); err != nil {
		log.Error("queue application status update failed", "err", err)
	}
	return OutcomeDispatched, nil
}

// HandleTask is the taskqueue handler for taskqueue.KindInterviewCall.
func (d *Dispatcher) HandleTask(ctx context.Context, t taskqueue.Task) error {
	call, err := taskqueue.Decode[Call](t)
	if err != nil {
		return err
	}
	_, err = d.Dispatch(ctx, call)
	return err
}

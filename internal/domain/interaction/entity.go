package interaction

import (
	"time"

	"github.com/google/uuid"

	broker_errors "dealbroker/pkg/errors"
)

// Status is the reconciled outcome of a deal
type Status string

const (
	StatusPending Status = "PENDING"
	StatusOK      Status = "OK"
	StatusNoDeal  Status = "NO_DEAL"
	StatusIssue   Status = "ISSUE"
)

// Override records why a status stopped following the two reports.
type Override string

const (
	OverrideNone      Override = ""
	OverrideEscalated Override = "ESCALATED"
	OverrideManual    Override = "MANUAL"
)

// Side identifies which party reported.
type Side string

const (
	SideRequester Side = "requester"
	SideFulfiller Side = "fulfiller"
)

func (s Side) Valid() bool {
	return s == SideRequester || s == SideFulfiller
}

// PostponePolicy bounds how long a deal may stay unresolved.
type PostponePolicy struct {
	Delay        time.Duration
	MaxPostpones int
}

// Interaction represents the interactions table: one per
// (task, fulfiller, requester) triple.
type Interaction struct {
	ID            uuid.UUID
	TaskID        uuid.UUID
	FulfillerID   uuid.UUID
	RequesterID   uuid.UUID
	Status        Status
	FromRequester *Outcome
	FromFulfiller *Outcome
	RequesterText string
	FulfillerText string
	PostponeCount int
	NextCheckAt   *time.Time
	Override      Override
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// New opens a PENDING interaction whose first check is due after the
// postpone delay.
func New(taskID, fulfillerID, requesterID uuid.UUID, now time.Time, delay time.Duration) *Interaction {
	next := now.Add(delay)
	return &Interaction{
		ID:          uuid.New(),
		TaskID:      taskID,
		FulfillerID: fulfillerID,
		RequesterID: requesterID,
		Status:      StatusPending,
		NextCheckAt: &next,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SideOf returns which party userID is.
func (i *Interaction) SideOf(userID uuid.UUID) (Side, bool) {
	switch userID {
	case i.RequesterID:
		return SideRequester, true
	case i.FulfillerID:
		return SideFulfiller, true
	}
	return "", false
}

// Report returns the latest classified report of side, nil if none.
func (i *Interaction) Report(side Side) *Outcome {
	if side == SideRequester {
		return i.FromRequester
	}
	return i.FromFulfiller
}

func (i *Interaction) setReport(side Side, o Outcome, text string) {
	if side == SideRequester {
		i.FromRequester = &o
		i.RequesterText = text
		return
	}
	i.FromFulfiller = &o
	i.FulfillerText = text
}

// NeedsReminder reports whether side still owes a final answer.
func (i *Interaction) NeedsReminder(side Side) bool {
	r := i.Report(side)
	return r == nil || *r == OutcomePostpone
}

// Closed reports whether further feedback is refused.
func (i *Interaction) Closed() bool {
	return i.Override != OverrideNone
}

// Submit applies one party's classified report.
//
// A POSTPONE is accepted only while the deal is PENDING and counts toward
// the ceiling; the postpone that arrives once the ceiling is already reached
// forces NO_DEAL. A final answer replaces an earlier POSTPONE of the same
// side but never an earlier final answer.
func (i *Interaction) Submit(side Side, o Outcome, text string, now time.Time, p PostponePolicy) error {
	if !side.Valid() || !o.Valid() {
		return broker_errors.ErrInvalidInput
	}
	if i.Closed() {
		return broker_errors.ErrFeedbackClosed
	}
	if prev := i.Report(side); prev != nil && *prev != OutcomePostpone {
		return broker_errors.ErrFeedbackClosed
	}

	if o == OutcomePostpone {
		if i.Status != StatusPending {
			return broker_errors.ErrFeedbackClosed
		}
		i.setReport(side, o, text)
		if i.PostponeCount >= p.MaxPostpones {
			i.PostponeCount++
			i.Status = StatusNoDeal
			i.Override = OverrideEscalated
			i.NextCheckAt = nil
			i.UpdatedAt = now
			return nil
		}
		i.PostponeCount++
		next := now.Add(p.Delay)
		i.NextCheckAt = &next
		i.Status = Aggregate(i.FromRequester, i.FromFulfiller)
		i.UpdatedAt = now
		return nil
	}

	i.setReport(side, o, text)
	i.Status = Aggregate(i.FromRequester, i.FromFulfiller)
	if i.Status == StatusPending {
		if i.NextCheckAt == nil {
			next := now.Add(p.Delay)
			i.NextCheckAt = &next
		}
	} else {
		i.NextCheckAt = nil
	}
	i.UpdatedAt = now
	return nil
}

// Resolve is the operator override for disputed deals. Only ISSUE can be
// resolved, and only to OK or NO_DEAL.
func (i *Interaction) Resolve(to Status, now time.Time) error {
	if to != StatusOK && to != StatusNoDeal {
		return broker_errors.ErrInvalidInput
	}
	if i.Status != StatusIssue {
		return broker_errors.ErrInteractionNotIssue
	}
	i.Status = to
	i.Override = OverrideManual
	i.NextCheckAt = nil
	i.UpdatedAt = now
	return nil
}

// Reschedule sets the next reminder check.
func (i *Interaction) Reschedule(next time.Time, now time.Time) {
	i.NextCheckAt = &next
	i.UpdatedAt = now
}

// NextReminderAt returns tomorrow at hour:minute in loc, so reminders land
// at a civil hour for the parties.
func NextReminderAt(now time.Time, loc *time.Location, hour, minute int) time.Time {
	local := now.In(loc)
	y, m, d := local.AddDate(0, 0, 1).Date()
	return time.Date(y, m, d, hour, minute, 0, 0, loc)
}

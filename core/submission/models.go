package submission

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type Status string

// Statuses; a pair without a record is not submitted.
const (
	StatusPending   Status = "PENDING_CONFIRMATION"
	StatusSubmitted Status = "SUBMITTED"
)

type Submission struct {
	ID           string    `json:"id"`
	AssignmentID string    `json:"assignmentId"`
	StudentID    string    `json:"studentId"`
	Status       Status    `json:"status"`
	SubmittedAt  null.Time `json:"submittedAt"` // set on SUBMITTED
}

func (s Submission) IsSubmitted() bool {
	return s.Status == StatusSubmitted
}

// UndoToken allows the student to revert a SUBMITTED transition until ExpiresAt.
type UndoToken struct {
	SubmissionID string    `json:"submissionId"`
	ExpiresAt    time.Time `json:"expiresAt"`
}

func (tok UndoToken) ValidAt(now time.Time) bool {
	return now.Before(tok.ExpiresAt)
}

type Outcome string

const (
	OutcomeAwaitingConfirmation Outcome = "AWAITING_CONFIRMATION"
	OutcomeSubmitted            Outcome = "SUBMITTED"
)

// Result is returned by the submit operations.
type Result struct {
	Submission Submission `json:"submission"`
	Outcome    Outcome    `json:"outcome"`
	Undo       *UndoToken `json:"undo,omitempty"` // only with OutcomeSubmitted
}

// QueryFilter applies AND operation on the set fields.
type QueryFilter struct {
	AssignmentID string
	StudentID    string
	Status       Status
}

func (qf QueryFilter) Match(s Submission) bool {
	if qf.AssignmentID != "" && s.AssignmentID != qf.AssignmentID {
		return false
	}
	if qf.StudentID != "" && s.StudentID != qf.StudentID {
		return false
	}
	if qf.Status != "" && s.Status != qf.Status {
		return false
	}
	return true
}

// Changes holds the partial fields a repository applies on update.
type Changes struct {
	Status      *Status
	SubmittedAt *null.Time
}

func (ch Changes) Apply(s Submission) Submission {
	if ch.Status != nil {
		s.Status = *ch.Status
	}
	if ch.SubmittedAt != nil {
		s.SubmittedAt = *ch.SubmittedAt
	}
	return s
}

package progress

import (
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
)

// StatusNotSubmitted is the status of a pair without a submission record.
const StatusNotSubmitted = "NOT_SUBMITTED"

// StudentAssignment is an assignment as one student sees it.
type StudentAssignment struct {
	assignment.Assignment
	Status      string    `json:"status"`  // NOT_SUBMITTED, PENDING_CONFIRMATION or SUBMITTED
	Overdue     bool      `json:"overdue"` // due date passed and not SUBMITTED
	SubmittedAt null.Time `json:"submittedAt"`
}

// StudentAssignments lists the assignments assigned to the student, in stored order, with its submission state at `now`.
func StudentAssignments(studentID string, now time.Time, assignments []assignment.Assignment, subs []submission.Submission) []StudentAssignment {
	byAssignment := make(map[string]submission.Submission, len(subs))
	for _, s := range subs {
		if s.StudentID == studentID {
			byAssignment[s.AssignmentID] = s
		}
	}

	views := make([]StudentAssignment, 0, len(assignments))
	for _, a := range assignments {
		if !a.IsAssignedTo(studentID) {
			continue
		}
		v := StudentAssignment{Assignment: a, Status: StatusNotSubmitted}
		if s, ok := byAssignment[a.ID]; ok {
			v.Status = string(s.Status)
			v.SubmittedAt = s.SubmittedAt
		}
		v.Overdue = a.IsOverdue(now) && v.Status != string(submission.StatusSubmitted)
		views = append(views, v)
	}
	return views
}

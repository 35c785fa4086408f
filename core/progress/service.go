package progress

import (
	"context"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

const unknownStudent = "Unknown Student"

// RosterEntry is one assigned student of an assignment.
type RosterEntry struct {
	StudentID   string    `json:"studentId"`
	Name        string    `json:"name"`
	Status      string    `json:"status"` // StatusNotSubmitted when there is no record
	Submitted   bool      `json:"submitted"`
	SubmittedAt null.Time `json:"submittedAt"`
}

type Service struct {
	db      core.KVExecutor
	asgRepo assignment.Repository
	subRepo submission.Repository
	usrRepo user.Repository
}

func NewService(db core.KVExecutor, asgRepo assignment.Repository, subRepo submission.Repository, usrRepo user.Repository) *Service {
	return &Service{db: db, asgRepo: asgRepo, subRepo: subRepo, usrRepo: usrRepo}
}

func (svc *Service) StudentSummary(ctx context.Context, studentID string) (Summary, error) {
	asgs, err := svc.asgRepo.QueryAssignments(ctx, svc.db, assignment.QueryFilter{AssignedTo: studentID})
	if err != nil {
		return Summary{}, err
	}
	subs, err := svc.subRepo.QuerySubmissions(ctx, svc.db, submission.QueryFilter{StudentID: studentID})
	if err != nil {
		return Summary{}, err
	}
	return SummarizeStudent(studentID, asgs, subs), nil
}

// StudentAssignments reads the student's assignments with their submission state as of now.
func (svc *Service) StudentAssignments(ctx context.Context, studentID string) ([]StudentAssignment, error) {
	asgs, err := svc.asgRepo.QueryAssignments(ctx, svc.db, assignment.QueryFilter{AssignedTo: studentID})
	if err != nil {
		return nil, err
	}
	subs, err := svc.subRepo.QuerySubmissions(ctx, svc.db, submission.QueryFilter{StudentID: studentID})
	if err != nil {
		return nil, err
	}
	return StudentAssignments(studentID, core.NowFunc(), asgs, subs), nil
}

func (svc *Service) StudentProgress(ctx context.Context, studentID string) (int, error) {
	sum, err := svc.StudentSummary(ctx, studentID)
	if err != nil {
		return 0, err
	}
	return sum.Percentage, nil
}

func (svc *Service) AssignmentProgress(ctx context.Context, assignmentID string) (int, error) {
	a, err := svc.asgRepo.GetAssignmentByID(ctx, svc.db, assignmentID)
	if err != nil {
		return 0, err
	}
	subs, err := svc.subRepo.QuerySubmissions(ctx, svc.db, submission.QueryFilter{AssignmentID: assignmentID})
	if err != nil {
		return 0, err
	}
	return ForAssignment(a, subs), nil
}

// Roster lists the assignment's students in assignment order with their submission state.
func (svc *Service) Roster(ctx context.Context, assignmentID string) ([]RosterEntry, error) {
	a, err := svc.asgRepo.GetAssignmentByID(ctx, svc.db, assignmentID)
	if err != nil {
		return nil, err
	}
	subs, err := svc.subRepo.QuerySubmissions(ctx, svc.db, submission.QueryFilter{AssignmentID: assignmentID})
	if err != nil {
		return nil, err
	}
	users, err := svc.usrRepo.QueryAllUsers(ctx, svc.db)
	if err != nil {
		return nil, err
	}

	names := make(map[string]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}
	byStudent := make(map[string]submission.Submission, len(subs))
	for _, s := range subs {
		byStudent[s.StudentID] = s
	}

	roster := make([]RosterEntry, 0, len(a.AssignedTo))
	for _, id := range a.AssignedTo {
		entry := RosterEntry{StudentID: id, Name: names[id], Status: StatusNotSubmitted}
		if entry.Name == "" {
			entry.Name = unknownStudent
		}
		if s, ok := byStudent[id]; ok {
			entry.Status = string(s.Status)
			entry.Submitted = s.IsSubmitted()
			entry.SubmittedAt = s.SubmittedAt
		}
		roster = append(roster, entry)
	}
	return roster, nil
}

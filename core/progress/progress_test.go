package progress

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/storage/collection"
	"github.com/trezcool/kazi/tests"
)

var t0 = time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC)

func sub(id, assignmentID, studentID string, status submission.Status) submission.Submission {
	s := submission.Submission{ID: id, AssignmentID: assignmentID, StudentID: studentID, Status: status}
	if status == submission.StatusSubmitted {
		s.SubmittedAt = null.TimeFrom(t0)
	}
	return s
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		done, total, want int
	}{
		{0, 0, 0},
		{0, 3, 0},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{1, 8, 13}, // 12.5 rounds half away from zero
		{3, 3, 100},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Percentage(tt.done, tt.total), "Percentage(%d, %d)", tt.done, tt.total)
	}
}

func TestForStudent(t *testing.T) {
	asgs := []assignment.Assignment{
		{ID: "a1", AssignedTo: []string{"s1", "s2"}},
		{ID: "a2", AssignedTo: []string{"s1"}},
		{ID: "a3", AssignedTo: []string{"s2"}},
	}

	tests := []struct {
		name      string
		studentID string
		subs      []submission.Submission
		want      int
	}{
		{name: "nothing assigned", studentID: "s9", want: 0},
		{name: "nothing submitted", studentID: "s1", want: 0},
		{
			name:      "one submitted one pending",
			studentID: "s1",
			subs: []submission.Submission{
				sub("x1", "a1", "s1", submission.StatusSubmitted),
				sub("x2", "a2", "s1", submission.StatusPending),
			},
			want: 50,
		},
		{
			name:      "all submitted",
			studentID: "s1",
			subs: []submission.Submission{
				sub("x1", "a1", "s1", submission.StatusSubmitted),
				sub("x2", "a2", "s1", submission.StatusSubmitted),
			},
			want: 100,
		},
		{
			name:      "other students do not count",
			studentID: "s2",
			subs: []submission.Submission{
				sub("x1", "a1", "s1", submission.StatusSubmitted),
				sub("x3", "a3", "s2", submission.StatusSubmitted),
			},
			want: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForStudent(tt.studentID, asgs, tt.subs))
		})
	}
}

func TestForAssignment(t *testing.T) {
	x := assignment.Assignment{ID: "x", AssignedTo: []string{"s1", "s2"}}

	tests := []struct {
		name string
		a    assignment.Assignment
		subs []submission.Submission
		want int
	}{
		{name: "empty roster", a: assignment.Assignment{ID: "y"}, want: 0},
		{name: "half the class", a: x, subs: []submission.Submission{sub("x1", "x", "s1", submission.StatusSubmitted)}, want: 50},
		{
			name: "pending does not count",
			a:    x,
			subs: []submission.Submission{
				sub("x1", "x", "s1", submission.StatusSubmitted),
				sub("x2", "x", "s2", submission.StatusPending),
			},
			want: 50,
		},
		{
			name: "unassigned student does not count",
			a:    x,
			subs: []submission.Submission{
				sub("x1", "x", "s1", submission.StatusSubmitted),
				sub("x3", "x", "s3", submission.StatusSubmitted),
			},
			want: 50,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ForAssignment(tt.a, tt.subs))
		})
	}
}

func TestService(t *testing.T) {
	ctx := context.Background()
	store, _ := testutil.PrepareStore(t)
	usrRepo := collection.NewUserRepository()
	asgRepo := collection.NewAssignmentRepository()
	subRepo := collection.NewSubmissionRepository()

	testutil.CreateUser(t, store, usrRepo, "s1", "Chloe Mwangi", user.RoleStudent)
	for _, a := range []assignment.Assignment{
		{ID: "a1", Title: "Essay", AssignedTo: []string{"s1", "ghost"}, CreatedBy: "i1"},
		{ID: "a2", Title: "Lab", AssignedTo: []string{"s1"}, CreatedBy: "i1"},
	} {
		_, err := asgRepo.CreateAssignment(ctx, store, a)
		require.NoError(t, err)
	}
	for _, s := range []submission.Submission{
		sub("x1", "a1", "s1", submission.StatusSubmitted),
		sub("x2", "a2", "s1", submission.StatusPending),
	} {
		_, err := subRepo.CreateSubmission(ctx, store, s)
		require.NoError(t, err)
	}

	svc := NewService(store, asgRepo, subRepo, usrRepo)

	t.Run("student", func(t *testing.T) {
		sum, err := svc.StudentSummary(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, Summary{Submitted: 1, Total: 2, Percentage: 50}, sum)

		pct, err := svc.StudentProgress(ctx, "s1")
		require.NoError(t, err)
		assert.Equal(t, 50, pct)
	})

	t.Run("assignment", func(t *testing.T) {
		pct, err := svc.AssignmentProgress(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 50, pct)

		_, err = svc.AssignmentProgress(ctx, "nope")
		assert.Error(t, err)
	})

	t.Run("roster", func(t *testing.T) {
		roster, err := svc.Roster(ctx, "a1")
		require.NoError(t, err)
		require.Len(t, roster, 2)
		assert.Equal(t, "Chloe Mwangi", roster[0].Name)
		assert.True(t, roster[0].Submitted)
		assert.True(t, roster[0].SubmittedAt.Valid)
		assert.Equal(t, "Unknown Student", roster[1].Name)
		assert.Equal(t, "NOT_SUBMITTED", roster[1].Status)
		assert.False(t, roster[1].Submitted)
	})

	t.Run("recomputed after writes", func(t *testing.T) {
		_, err := subRepo.CreateSubmission(ctx, store, sub("x3", "a1", "ghost", submission.StatusSubmitted))
		require.NoError(t, err)

		pct, err := svc.AssignmentProgress(ctx, "a1")
		require.NoError(t, err)
		assert.Equal(t, 100, pct)
	})
}

func TestStudentAssignments(t *testing.T) {
	past := assignment.Assignment{ID: "past", DueDate: t0.AddDate(0, 0, -7), AssignedTo: []string{"s1"}}
	future := assignment.Assignment{ID: "future", DueDate: t0.AddDate(0, 0, 7), AssignedTo: []string{"s1"}}

	tests := []struct {
		name        string
		a           assignment.Assignment
		subs        []submission.Submission
		wantStatus  string
		wantOverdue bool
		wantAt      bool
	}{
		{name: "not submitted", a: future, wantStatus: StatusNotSubmitted},
		{name: "pending confirmation", a: future, subs: []submission.Submission{sub("x1", "future", "s1", submission.StatusPending)}, wantStatus: "PENDING_CONFIRMATION"},
		{name: "submitted", a: future, subs: []submission.Submission{sub("x1", "future", "s1", submission.StatusSubmitted)}, wantStatus: "SUBMITTED", wantAt: true},
		{name: "overdue", a: past, wantStatus: StatusNotSubmitted, wantOverdue: true},
		{name: "overdue while pending", a: past, subs: []submission.Submission{sub("x1", "past", "s1", submission.StatusPending)}, wantStatus: "PENDING_CONFIRMATION", wantOverdue: true},
		{name: "submitted clears overdue", a: past, subs: []submission.Submission{sub("x1", "past", "s1", submission.StatusSubmitted)}, wantStatus: "SUBMITTED", wantAt: true},
		{name: "another student's record", a: past, subs: []submission.Submission{sub("x1", "past", "s2", submission.StatusSubmitted)}, wantStatus: StatusNotSubmitted, wantOverdue: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			views := StudentAssignments("s1", t0, []assignment.Assignment{tt.a}, tt.subs)
			require.Len(t, views, 1)
			assert.Equal(t, tt.a.ID, views[0].ID)
			assert.Equal(t, tt.wantStatus, views[0].Status)
			assert.Equal(t, tt.wantOverdue, views[0].Overdue)
			assert.Equal(t, tt.wantAt, views[0].SubmittedAt.Valid)
		})
	}

	t.Run("only assigned, in stored order", func(t *testing.T) {
		other := assignment.Assignment{ID: "other", AssignedTo: []string{"s2"}}
		views := StudentAssignments("s1", t0, []assignment.Assignment{future, other, past}, nil)
		require.Len(t, views, 2)
		assert.Equal(t, "future", views[0].ID)
		assert.Equal(t, "past", views[1].ID)
	})
}

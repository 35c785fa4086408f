// Package tracker is the public contract the drivers call into.
// Mutations are serialized and return the collections as read right after the write.
package tracker

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/progress"
	"github.com/trezcool/kazi/core/session"
	"github.com/trezcool/kazi/core/submission"
	"github.com/trezcool/kazi/core/user"
)

// Change events
const (
	EventSession     = "session"
	EventAssignments = "assignments"
	EventSubmissions = "submissions"
)

type Snapshot struct {
	Users       []user.User             `json:"users"`
	Assignments []assignment.Assignment `json:"assignments"`
	Submissions []submission.Submission `json:"submissions"`
}

type Tracker struct {
	mu          sync.RWMutex
	users       *user.Service
	assignments *assignment.Service
	submissions *submission.Service
	progress    *progress.Service
	session     *session.Holder

	lmu       sync.RWMutex
	listeners []func(event string)
}

func New(
	usrSvc *user.Service,
	asgSvc *assignment.Service,
	subSvc *submission.Service,
	progSvc *progress.Service,
	holder *session.Holder,
) *Tracker {
	return &Tracker{
		users:       usrSvc,
		assignments: asgSvc,
		submissions: subSvc,
		progress:    progSvc,
		session:     holder,
	}
}

// OnChange registers fn to be called after every successful mutation.
func (t *Tracker) OnChange(fn func(event string)) {
	t.lmu.Lock()
	defer t.lmu.Unlock()
	t.listeners = append(t.listeners, fn)
}

func (t *Tracker) emit(event string) {
	t.lmu.RLock()
	defer t.lmu.RUnlock()
	for _, fn := range t.listeners {
		fn(event)
	}
}

// Init restores the persisted session.
func (t *Tracker) Init(ctx context.Context) error {
	return t.session.Init(ctx)
}

// Close cancels the pending undo windows.
func (t *Tracker) Close() {
	t.submissions.Close()
}

func (t *Tracker) snapshot(ctx context.Context) (Snapshot, error) {
	var (
		snap Snapshot
		err  error
	)
	if snap.Users, err = t.users.QueryAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Assignments, err = t.assignments.QueryAll(ctx); err != nil {
		return Snapshot{}, err
	}
	if snap.Submissions, err = t.submissions.Query(ctx, submission.QueryFilter{}); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

func (t *Tracker) Snapshot(ctx context.Context) (Snapshot, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.snapshot(ctx)
}

// after reads the fresh snapshot following a mutation; benign errors still come with it.
func (t *Tracker) after(ctx context.Context, event string, opErr error) (Snapshot, error) {
	if opErr != nil && !core.IsBenign(opErr) {
		return Snapshot{}, opErr
	}
	snap, err := t.snapshot(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if opErr == nil {
		t.emit(event)
	}
	return snap, opErr
}

// requireRole returns the user `id` when it has `role`.
func (t *Tracker) requireRole(ctx context.Context, id string, role user.Role) (user.User, error) {
	usr, err := t.users.GetByID(ctx, id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.ErrForbidden
		}
		return user.User{}, err
	}
	if usr.Role != role {
		return user.User{}, core.ErrForbidden
	}
	return usr, nil
}

// Session

func (t *Tracker) Login(ctx context.Context, userID string) (user.User, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	usr, err := t.users.GetByID(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if err = t.session.Login(ctx, usr); err != nil {
		return user.User{}, err
	}
	t.emit(EventSession)
	return usr, nil
}

func (t *Tracker) Logout(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.session.Logout(ctx); err != nil {
		return err
	}
	t.emit(EventSession)
	return nil
}

func (t *Tracker) CurrentUser() (user.User, bool) {
	return t.session.Current()
}

func (t *Tracker) Users(ctx context.Context) ([]user.User, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.users.QueryAll(ctx)
}

// Assignments

func (t *Tracker) ListAssignmentsFor(ctx context.Context, usr user.User) ([]assignment.Assignment, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.assignments.QueryFor(ctx, usr)
}

func (t *Tracker) CreateAssignment(ctx context.Context, na assignment.NewAssignment, instructorID string) (assignment.Assignment, Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.assignments.Create(ctx, na, instructorID)
	snap, err := t.after(ctx, EventAssignments, err)
	return a, snap, err
}

func (t *Tracker) UpdateAssignment(ctx context.Context, id string, ua assignment.UpdateAssignment, instructorID string) (assignment.Assignment, Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	a, err := t.assignments.Update(ctx, id, ua, instructorID)
	snap, err := t.after(ctx, EventAssignments, err)
	return a, snap, err
}

func (t *Tracker) DeleteAssignment(ctx context.Context, id, instructorID string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireRole(ctx, instructorID, user.RoleAdmin); err != nil {
		return Snapshot{}, errors.Wrap(err, "deleting assignment")
	}
	return t.after(ctx, EventAssignments, t.submissions.DeleteAssignment(ctx, id, instructorID))
}

// Submissions

func (t *Tracker) RequestSubmit(ctx context.Context, assignmentID, studentID string) (submission.Result, Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireRole(ctx, studentID, user.RoleStudent); err != nil {
		return submission.Result{}, Snapshot{}, errors.Wrap(err, "requesting submission")
	}
	res, err := t.submissions.RequestSubmit(ctx, assignmentID, studentID)
	snap, err := t.after(ctx, EventSubmissions, err)
	return res, snap, err
}

func (t *Tracker) ConfirmSubmit(ctx context.Context, submissionID, studentID string) (submission.Result, Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireRole(ctx, studentID, user.RoleStudent); err != nil {
		return submission.Result{}, Snapshot{}, errors.Wrap(err, "confirming submission")
	}
	res, err := t.submissions.ConfirmSubmit(ctx, submissionID, studentID)
	snap, err := t.after(ctx, EventSubmissions, err)
	return res, snap, err
}

func (t *Tracker) UndoSubmit(ctx context.Context, submissionID, studentID string) (Snapshot, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, err := t.requireRole(ctx, studentID, user.RoleStudent); err != nil {
		return Snapshot{}, errors.Wrap(err, "undoing submission")
	}
	return t.after(ctx, EventSubmissions, t.submissions.Undo(ctx, submissionID, studentID))
}

// Progress

func (t *Tracker) StudentProgress(ctx context.Context, studentID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.StudentProgress(ctx, studentID)
}

func (t *Tracker) StudentSummary(ctx context.Context, studentID string) (progress.Summary, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.StudentSummary(ctx, studentID)
}

// StudentAssignments returns the assignments of the student with their status and overdue flag.
func (t *Tracker) StudentAssignments(ctx context.Context, studentID string) ([]progress.StudentAssignment, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.StudentAssignments(ctx, studentID)
}

func (t *Tracker) AssignmentProgress(ctx context.Context, assignmentID string) (int, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.AssignmentProgress(ctx, assignmentID)
}

func (t *Tracker) Roster(ctx context.Context, assignmentID string) ([]progress.RosterEntry, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.progress.Roster(ctx, assignmentID)
}

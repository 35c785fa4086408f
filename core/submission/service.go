package submission

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

var (
	// errors
	ErrAlreadySubmitted = core.NewBenignError("this assignment is already submitted")
	ErrUndoExpired      = core.NewBenignError("the undo window has expired")
	ErrNotAssigned      = errors.Wrap(core.ErrForbidden, "the assignment is not assigned to this student")
)

type (
	Repository interface {
		CreateSubmission(ctx context.Context, db core.KVExecutor, sub Submission) (Submission, error)
		QuerySubmissions(ctx context.Context, db core.KVExecutor, filter QueryFilter) ([]Submission, error)
		GetSubmissionByID(ctx context.Context, db core.KVExecutor, id string) (Submission, error)
		GetSubmissionForPair(ctx context.Context, db core.KVExecutor, assignmentID, studentID string) (Submission, error)
		UpdateSubmission(ctx context.Context, db core.KVExecutor, id string, ch Changes) (Submission, error)
		DeleteSubmission(ctx context.Context, db core.KVExecutor, id string) error
		// DeleteAssignmentSubmissions removes every submission of the assignment and returns their ids.
		DeleteAssignmentSubmissions(ctx context.Context, db core.KVExecutor, assignmentID string) ([]string, error)
	}

	// Service is the submission lifecycle engine.
	// Every operation is one read-decide-write inside a KV transaction, serialized by mu.
	Service struct {
		mu      sync.Mutex
		db      core.KVStore
		repo    Repository
		asgRepo assignment.Repository
		window  time.Duration
		undo    *undoScheduler
		logger  core.Logger
	}
)

func NewService(
	db core.KVStore,
	repo Repository,
	asgRepo assignment.Repository,
	window time.Duration,
	logger core.Logger,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		asgRepo: asgRepo,
		window:  window,
		undo:    newUndoScheduler(logger),
		logger:  logger,
	}
}

// RequestSubmit starts a submission cycle for the pair, or advances it when one is pending.
func (svc *Service) RequestSubmit(ctx context.Context, assignmentID, studentID string) (Result, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var (
		res Result
		err error
	)
	err = core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		a, err := svc.asgRepo.GetAssignmentByID(ctx, tx, assignmentID)
		if err != nil {
			return err
		}
		if !a.IsAssignedTo(studentID) {
			return ErrNotAssigned
		}

		sub, err := svc.repo.GetSubmissionForPair(ctx, tx, assignmentID, studentID)
		switch {
		case err == nil:
			res, err = svc.advance(ctx, tx, sub)
			return err
		case !core.IsNotFound(err):
			return err
		}

		res, err = svc.start(ctx, tx, assignmentID, studentID)
		return err
	})
	if err != nil {
		return res, errors.Wrap(err, "requesting submission")
	}
	svc.afterCommit(res)
	return res, nil
}

// ConfirmSubmit is the explicit second click; it advances the cycle of submission `id`.
func (svc *Service) ConfirmSubmit(ctx context.Context, id, studentID string) (Result, error) {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var res Result
	err := core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		sub, err := svc.repo.GetSubmissionByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.StudentID != studentID {
			return core.ErrForbidden
		}
		a, err := svc.asgRepo.GetAssignmentByID(ctx, tx, sub.AssignmentID)
		if err != nil {
			return err
		}
		if !a.IsAssignedTo(studentID) {
			return ErrNotAssigned
		}
		res, err = svc.advance(ctx, tx, sub)
		return err
	})
	if err != nil {
		return res, errors.Wrap(err, "confirming submission")
	}
	svc.afterCommit(res)
	return res, nil
}

func (svc *Service) start(ctx context.Context, tx core.KVExecutor, assignmentID, studentID string) (Result, error) {
	sub := Submission{
		ID:           core.GenerateID("sub"),
		AssignmentID: assignmentID,
		StudentID:    studentID,
		Status:       StatusPending,
	}
	created, err := svc.repo.CreateSubmission(ctx, tx, sub)
	if core.IsDuplicateID(err) {
		// retry once with a fresh id
		sub.ID = core.GenerateID("sub")
		created, err = svc.repo.CreateSubmission(ctx, tx, sub)
	}
	if err != nil {
		return Result{}, err
	}
	return Result{Submission: created, Outcome: OutcomeAwaitingConfirmation}, nil
}

// advance moves a PENDING_CONFIRMATION record to SUBMITTED and issues its undo token.
func (svc *Service) advance(ctx context.Context, tx core.KVExecutor, sub Submission) (Result, error) {
	if sub.Status == StatusSubmitted {
		return Result{Submission: sub, Outcome: OutcomeSubmitted}, ErrAlreadySubmitted
	}

	now := core.NowFunc().UTC()
	status := StatusSubmitted
	submittedAt := null.TimeFrom(now)
	updated, err := svc.repo.UpdateSubmission(ctx, tx, sub.ID, Changes{Status: &status, SubmittedAt: &submittedAt})
	if err != nil {
		return Result{}, err
	}
	tok := UndoToken{SubmissionID: updated.ID, ExpiresAt: now.Add(svc.window)}
	return Result{Submission: updated, Outcome: OutcomeSubmitted, Undo: &tok}, nil
}

func (svc *Service) afterCommit(res Result) {
	switch res.Outcome {
	case OutcomeAwaitingConfirmation:
		// a new cycle supersedes any token left for the pair
		svc.undo.cancelPair(res.Submission.AssignmentID, res.Submission.StudentID)
	case OutcomeSubmitted:
		if res.Undo != nil {
			svc.undo.schedule(res.Submission, *res.Undo)
		}
	}
}

// Undo deletes submission `id`, returning the pair to not submitted.
// A pending record may always be withdrawn; a SUBMITTED one only while its undo token is valid,
// otherwise ErrUndoExpired is returned and the record is kept.
func (svc *Service) Undo(ctx context.Context, id, studentID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	err := core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		sub, err := svc.repo.GetSubmissionByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if sub.StudentID != studentID {
			return core.ErrForbidden
		}
		if sub.IsSubmitted() && !svc.undo.valid(sub.ID, core.NowFunc()) {
			return ErrUndoExpired
		}
		return svc.repo.DeleteSubmission(ctx, tx, sub.ID)
	})
	if err != nil {
		return errors.Wrap(err, "undoing submission")
	}
	svc.undo.cancel(id) // consumed
	return nil
}

// UndoToken returns the still pending undo token of submission `id`, if any.
func (svc *Service) UndoToken(id string) (UndoToken, bool) {
	tok, ok := svc.undo.token(id)
	if !ok || !tok.ValidAt(core.NowFunc()) {
		return UndoToken{}, false
	}
	return tok, true
}

// DeleteAssignment removes assignment `id` and all of its submissions at once.
// Only its creator may delete it.
func (svc *Service) DeleteAssignment(ctx context.Context, id, instructorID string) error {
	svc.mu.Lock()
	defer svc.mu.Unlock()

	var removed []string
	err := core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		a, err := svc.asgRepo.GetAssignmentByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := a.CheckOwner(instructorID); err != nil {
			return err
		}
		if removed, err = svc.repo.DeleteAssignmentSubmissions(ctx, tx, id); err != nil {
			return err
		}
		return svc.asgRepo.DeleteAssignment(ctx, tx, id)
	})
	if err != nil {
		return errors.Wrap(err, "deleting assignment")
	}

	svc.undo.cancel(removed...)
	if svc.logger != nil {
		svc.logger.Info("assignment deleted", map[string]interface{}{"assignment": id, "submissions": len(removed)})
	}
	return nil
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Submission, error) {
	return svc.repo.QuerySubmissions(ctx, svc.db, filter)
}

// Close cancels every pending undo timer.
func (svc *Service) Close() {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	svc.undo.stop()
}

// OpenUndoWindows returns how many undo tokens are still pending.
func (svc *Service) OpenUndoWindows() int {
	return svc.undo.len()
}

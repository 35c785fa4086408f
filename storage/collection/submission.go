package collection

import (
	"context"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/submission"
)

type submissionRepository struct{}

var _ submission.Repository = (*submissionRepository)(nil)

func NewSubmissionRepository() submission.Repository {
	return &submissionRepository{}
}

func submissionID(s submission.Submission) string { return s.ID }

func (repo *submissionRepository) CreateSubmission(ctx context.Context, db core.KVExecutor, sub submission.Submission) (submission.Submission, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return submission.Submission{}, err
	}
	if indexOf(items, sub.ID, submissionID) >= 0 {
		return submission.Submission{}, core.NewDuplicateIDError("submission", sub.ID)
	}
	items = append(items, sub)
	if err = save(ctx, db, core.KeySubmissions, items); err != nil {
		return submission.Submission{}, err
	}
	return sub, nil
}

func (repo *submissionRepository) QuerySubmissions(ctx context.Context, db core.KVExecutor, filter submission.QueryFilter) ([]submission.Submission, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return nil, err
	}
	res := make([]submission.Submission, 0, len(items))
	for _, s := range items {
		if filter.Match(s) {
			res = append(res, s)
		}
	}
	return res, nil
}

func (repo *submissionRepository) GetSubmissionByID(ctx context.Context, db core.KVExecutor, id string) (submission.Submission, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return submission.Submission{}, err
	}
	if i := indexOf(items, id, submissionID); i >= 0 {
		return items[i], nil
	}
	return submission.Submission{}, core.NewNotFoundError("submission", id)
}

func (repo *submissionRepository) GetSubmissionForPair(ctx context.Context, db core.KVExecutor, assignmentID, studentID string) (submission.Submission, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return submission.Submission{}, err
	}
	for _, s := range items {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			return s, nil
		}
	}
	return submission.Submission{}, core.NewNotFoundError("submission", assignmentID+"/"+studentID)
}

func (repo *submissionRepository) UpdateSubmission(ctx context.Context, db core.KVExecutor, id string, ch submission.Changes) (submission.Submission, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return submission.Submission{}, err
	}
	i := indexOf(items, id, submissionID)
	if i < 0 {
		return submission.Submission{}, core.NewNotFoundError("submission", id)
	}
	items[i] = ch.Apply(items[i])
	if err = save(ctx, db, core.KeySubmissions, items); err != nil {
		return submission.Submission{}, err
	}
	return items[i], nil
}

func (repo *submissionRepository) DeleteSubmission(ctx context.Context, db core.KVExecutor, id string) error {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return err
	}
	i := indexOf(items, id, submissionID)
	if i < 0 {
		return core.NewNotFoundError("submission", id)
	}
	items = append(items[:i], items[i+1:]...)
	return save(ctx, db, core.KeySubmissions, items)
}

func (repo *submissionRepository) DeleteAssignmentSubmissions(ctx context.Context, db core.KVExecutor, assignmentID string) ([]string, error) {
	items, err := load[submission.Submission](ctx, db, core.KeySubmissions)
	if err != nil {
		return nil, err
	}
	kept := items[:0]
	var removed []string
	for _, s := range items {
		if s.AssignmentID == assignmentID {
			removed = append(removed, s.ID)
			continue
		}
		kept = append(kept, s)
	}
	if len(removed) == 0 {
		return nil, nil
	}
	if err = save(ctx, db, core.KeySubmissions, kept); err != nil {
		return nil, err
	}
	return removed, nil
}

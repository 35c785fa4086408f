package collection

import (
	"context"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
)

type assignmentRepository struct{}

var _ assignment.Repository = (*assignmentRepository)(nil)

func NewAssignmentRepository() assignment.Repository {
	return &assignmentRepository{}
}

func assignmentID(a assignment.Assignment) string { return a.ID }

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, db core.KVExecutor, a assignment.Assignment) (assignment.Assignment, error) {
	items, err := load[assignment.Assignment](ctx, db, core.KeyAssignments)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if indexOf(items, a.ID, assignmentID) >= 0 {
		return assignment.Assignment{}, core.NewDuplicateIDError("assignment", a.ID)
	}
	a = assignment.Changes{AssignedTo: a.AssignedTo}.Apply(a) // dedup assignees
	if a.AssignedTo == nil {
		a.AssignedTo = []string{}
	}
	items = append(items, a)
	if err = save(ctx, db, core.KeyAssignments, items); err != nil {
		return assignment.Assignment{}, err
	}
	return a, nil
}

func (repo *assignmentRepository) QueryAssignments(ctx context.Context, db core.KVExecutor, filter assignment.QueryFilter) ([]assignment.Assignment, error) {
	items, err := load[assignment.Assignment](ctx, db, core.KeyAssignments)
	if err != nil {
		return nil, err
	}
	res := make([]assignment.Assignment, 0, len(items))
	for _, a := range items {
		if filter.Match(a) {
			res = append(res, a)
		}
	}
	return res, nil
}

func (repo *assignmentRepository) GetAssignmentByID(ctx context.Context, db core.KVExecutor, id string) (assignment.Assignment, error) {
	items, err := load[assignment.Assignment](ctx, db, core.KeyAssignments)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if i := indexOf(items, id, assignmentID); i >= 0 {
		return items[i], nil
	}
	return assignment.Assignment{}, core.NewNotFoundError("assignment", id)
}

func (repo *assignmentRepository) UpdateAssignment(ctx context.Context, db core.KVExecutor, id string, ch assignment.Changes) (assignment.Assignment, error) {
	items, err := load[assignment.Assignment](ctx, db, core.KeyAssignments)
	if err != nil {
		return assignment.Assignment{}, err
	}
	i := indexOf(items, id, assignmentID)
	if i < 0 {
		return assignment.Assignment{}, core.NewNotFoundError("assignment", id)
	}
	items[i] = ch.Apply(items[i])
	if err = save(ctx, db, core.KeyAssignments, items); err != nil {
		return assignment.Assignment{}, err
	}
	return items[i], nil
}

func (repo *assignmentRepository) DeleteAssignment(ctx context.Context, db core.KVExecutor, id string) error {
	items, err := load[assignment.Assignment](ctx, db, core.KeyAssignments)
	if err != nil {
		return err
	}
	i := indexOf(items, id, assignmentID)
	if i < 0 {
		return core.NewNotFoundError("assignment", id)
	}
	items = append(items[:i], items[i+1:]...)
	return save(ctx, db, core.KeyAssignments, items)
}

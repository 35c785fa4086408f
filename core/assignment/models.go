package assignment

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/kazi/core"
)

// DateLayout is the layout of due dates supplied by forms.
const DateLayout = "2006-01-02"

type Assignment struct {
	ID          string      `json:"id"`
	Title       string      `json:"title"`
	Description string      `json:"description"`
	DueDate     time.Time   `json:"dueDate"`
	DriveLink   null.String `json:"driveLink"`
	AssignedTo  []string    `json:"assignedTo"` // student ids, no duplicates
	CreatedBy   string      `json:"createdBy"`  // instructor id
	CreatedAt   time.Time   `json:"createdAt"`  // UTC
}

func (a Assignment) IsAssignedTo(studentID string) bool {
	for _, id := range a.AssignedTo {
		if id == studentID {
			return true
		}
	}
	return false
}

// CheckOwner fails with core.ErrForbidden unless `instructorID` created the assignment.
func (a Assignment) CheckOwner(instructorID string) error {
	if a.CreatedBy != instructorID {
		return core.ErrForbidden
	}
	return nil
}

// IsOverdue reports whether the due date has passed at `now`.
// Callers decide whether a SUBMITTED record overrides it.
func (a Assignment) IsOverdue(now time.Time) bool {
	return a.DueDate.Before(now)
}

// NewAssignment contains information needed to create a new Assignment.
type NewAssignment struct {
	Title       string   `json:"title" validate:"notblank,max=200"`
	Description string   `json:"description" validate:"notblank"`
	DueDate     string   `json:"dueDate" validate:"required,datetime=2006-01-02"`
	DriveLink   string   `json:"driveLink" validate:"omitempty,httpurl"`
	AssignedTo  []string `json:"assignedTo" validate:"required,min=1,dive,notblank"`
}

func (na *NewAssignment) Validate(validate *validator.Validate) error {
	na.Title = core.CleanString(na.Title)
	na.Description = core.CleanString(na.Description)
	na.DueDate = core.CleanString(na.DueDate)
	na.DriveLink = core.CleanString(na.DriveLink)
	na.AssignedTo = uniqueIDs(na.AssignedTo)

	return validate.Struct(na)
}

// UpdateAssignment defines what information may be provided to modify an existing Assignment.
// nil fields are left untouched.
type UpdateAssignment struct {
	Title       *string  `json:"title" validate:"omitnil,notblank,max=200"`
	Description *string  `json:"description" validate:"omitnil,notblank"`
	DueDate     *string  `json:"dueDate" validate:"omitnil,datetime=2006-01-02"`
	DriveLink   *string  `json:"driveLink" validate:"omitnil,httpurl|len=0"`
	AssignedTo  []string `json:"assignedTo" validate:"omitempty,dive,notblank"`
}

func (ua *UpdateAssignment) Validate(validate *validator.Validate) error {
	cleanPtr := func(s *string) {
		if s != nil {
			*s = core.CleanString(*s)
		}
	}
	cleanPtr(ua.Title)
	cleanPtr(ua.Description)
	cleanPtr(ua.DueDate)
	cleanPtr(ua.DriveLink)

	if ua.AssignedTo != nil {
		ua.AssignedTo = uniqueIDs(ua.AssignedTo)
		if len(ua.AssignedTo) == 0 {
			return core.NewValidationError(nil, core.FieldError{Field: "assignedTo", Error: errNoStudentsText})
		}
	}
	return validate.Struct(ua)
}

// Changes returns the validated update as typed field changes.
func (ua UpdateAssignment) Changes() Changes {
	var ch Changes
	ch.Title = ua.Title
	ch.Description = ua.Description
	if ua.DueDate != nil {
		if due, err := time.Parse(DateLayout, *ua.DueDate); err == nil {
			ch.DueDate = &due
		}
	}
	if ua.DriveLink != nil {
		link := null.NewString(*ua.DriveLink, *ua.DriveLink != "")
		ch.DriveLink = &link
	}
	ch.AssignedTo = ua.AssignedTo
	return ch
}

func (ch Changes) IsEmpty() bool {
	return ch.Title == nil && ch.Description == nil && ch.DueDate == nil && ch.DriveLink == nil && ch.AssignedTo == nil
}

// Changes holds the partial fields a repository applies on update.
type Changes struct {
	Title       *string
	Description *string
	DueDate     *time.Time
	DriveLink   *null.String
	AssignedTo  []string
}

func (ch Changes) Apply(a Assignment) Assignment {
	if ch.Title != nil {
		a.Title = *ch.Title
	}
	if ch.Description != nil {
		a.Description = *ch.Description
	}
	if ch.DueDate != nil {
		a.DueDate = *ch.DueDate
	}
	if ch.DriveLink != nil {
		a.DriveLink = *ch.DriveLink
	}
	if ch.AssignedTo != nil {
		a.AssignedTo = uniqueIDs(ch.AssignedTo)
	}
	return a
}

// QueryFilter applies AND operation on the set fields.
type QueryFilter struct {
	CreatedBy  string
	AssignedTo string
}

func (qf QueryFilter) Match(a Assignment) bool {
	if qf.CreatedBy != "" && a.CreatedBy != qf.CreatedBy {
		return false
	}
	if qf.AssignedTo != "" && !a.IsAssignedTo(qf.AssignedTo) {
		return false
	}
	return true
}

// uniqueIDs trims ids, drops blanks and duplicates, and keeps the first-seen order.
func uniqueIDs(ids []string) []string {
	if ids == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	res := make([]string, 0, len(ids))
	for _, id := range ids {
		id = core.CleanString(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		res = append(res, id)
	}
	return res
}

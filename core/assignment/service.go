package assignment

import (
	"context"
	"net/mail"
	texttmpl "text/template"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

var (
	errNoStudentsText = "please select at least one student"

	noticeTmpl = texttmpl.Must(texttmpl.New("assignmentNotice").Parse(`Hi {{.Student}},

{{.Instructor}} assigned you "{{.Title}}", due on {{.DueDate}}.

{{.Description}}
{{if .DriveLink}}
Materials: {{.DriveLink}}
{{end}}`))
)

type (
	Repository interface {
		CreateAssignment(ctx context.Context, db core.KVExecutor, a Assignment) (Assignment, error)
		QueryAssignments(ctx context.Context, db core.KVExecutor, filter QueryFilter) ([]Assignment, error)
		GetAssignmentByID(ctx context.Context, db core.KVExecutor, id string) (Assignment, error)
		UpdateAssignment(ctx context.Context, db core.KVExecutor, id string, ch Changes) (Assignment, error)
		DeleteAssignment(ctx context.Context, db core.KVExecutor, id string) error
	}

	Service struct {
		db       core.KVStore
		repo     Repository
		usrRepo  user.Repository
		validate *validator.Validate
		mailSvc  core.EmailService
	}
)

func NewService(
	db core.KVStore,
	repo Repository,
	usrRepo user.Repository,
	validate *validator.Validate,
	mailSvc core.EmailService,
) *Service {
	return &Service{
		db:       db,
		repo:     repo,
		usrRepo:  usrRepo,
		validate: validate,
		mailSvc:  mailSvc,
	}
}

// instructor returns the user `id` if it is an ADMIN.
func (svc *Service) instructor(ctx context.Context, db core.KVExecutor, id string) (user.User, error) {
	usr, err := svc.usrRepo.GetUserByID(ctx, db, id)
	if err != nil {
		if core.IsNotFound(err) {
			return user.User{}, core.ErrForbidden
		}
		return user.User{}, err
	}
	if !usr.IsAdmin() {
		return user.User{}, core.ErrForbidden
	}
	return usr, nil
}

// students resolves `ids` to STUDENT users, failing validation on any unknown id or non-student.
func (svc *Service) students(ctx context.Context, db core.KVExecutor, ids []string) ([]user.User, error) {
	all, err := svc.usrRepo.QueryAllUsers(ctx, db)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]user.User, len(all))
	for _, u := range all {
		byID[u.ID] = u
	}

	studs := make([]user.User, 0, len(ids))
	for _, id := range ids {
		u, ok := byID[id]
		if !ok || !u.IsStudent() {
			return nil, core.NewValidationError(nil, core.FieldError{
				Field: "assignedTo",
				Error: "unknown student: " + id,
			})
		}
		studs = append(studs, u)
	}
	return studs, nil
}

// Create stores a new Assignment owned by `instructorID` and notifies the assigned students.
func (svc *Service) Create(ctx context.Context, na NewAssignment, instructorID string) (Assignment, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	due, err := time.Parse(DateLayout, na.DueDate)
	if err != nil {
		return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "dueDate", Error: "invalid due date"})
	}

	var (
		created Assignment
		instr   user.User
		studs   []user.User
	)
	err = core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		var err error
		if instr, err = svc.instructor(ctx, tx, instructorID); err != nil {
			return err
		}
		if studs, err = svc.students(ctx, tx, na.AssignedTo); err != nil {
			return err
		}

		a := Assignment{
			ID:          core.GenerateID("assign"),
			Title:       na.Title,
			Description: na.Description,
			DueDate:     due,
			AssignedTo:  na.AssignedTo,
			CreatedBy:   instr.ID,
			CreatedAt:   core.NowFunc().UTC(),
		}
		if na.DriveLink != "" {
			a.DriveLink.SetValid(na.DriveLink)
		}

		created, err = svc.repo.CreateAssignment(ctx, tx, a)
		if core.IsDuplicateID(err) {
			// retry once with a fresh id
			a.ID = core.GenerateID("assign")
			created, err = svc.repo.CreateAssignment(ctx, tx, a)
		}
		return err
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "creating assignment")
	}

	svc.notify(created, instr, studs)
	return created, nil
}

func (svc *Service) notify(a Assignment, instr user.User, studs []user.User) {
	if svc.mailSvc == nil {
		return
	}
	msgs := make([]*core.EmailMessage, 0, len(studs))
	for _, s := range studs {
		if s.Email == "" {
			continue
		}
		msgs = append(msgs, &core.EmailMessage{
			To:       []mail.Address{{Name: s.Name, Address: s.Email}},
			Subject:  "New assignment: " + a.Title,
			Template: noticeTmpl,
			TemplateData: map[string]interface{}{
				"Student":     s.Name,
				"Instructor":  instr.Name,
				"Title":       a.Title,
				"Description": a.Description,
				"DueDate":     a.DueDate.Format(DateLayout),
				"DriveLink":   a.DriveLink.String,
			},
		})
	}
	if len(msgs) > 0 {
		svc.mailSvc.SendMessages(msgs...)
	}
}

// Update applies `ua` to the Assignment `id`; only its creator may do so.
func (svc *Service) Update(ctx context.Context, id string, ua UpdateAssignment, instructorID string) (Assignment, error) {
	if err := ua.Validate(svc.validate); err != nil {
		return Assignment{}, err
	}
	ch := ua.Changes()

	var updated Assignment
	err := core.InTx(ctx, svc.db, func(tx core.KVExecutor) error {
		if _, err := svc.instructor(ctx, tx, instructorID); err != nil {
			return err
		}
		a, err := svc.repo.GetAssignmentByID(ctx, tx, id)
		if err != nil {
			return err
		}
		if err := a.CheckOwner(instructorID); err != nil {
			return err
		}
		if ch.AssignedTo != nil {
			if _, err := svc.students(ctx, tx, ch.AssignedTo); err != nil {
				return err
			}
		}
		if ch.IsEmpty() {
			updated = a
			return nil
		}
		updated, err = svc.repo.UpdateAssignment(ctx, tx, id, ch)
		return err
	})
	if err != nil {
		return Assignment{}, errors.Wrap(err, "updating assignment")
	}
	return updated, nil
}

func (svc *Service) GetByID(ctx context.Context, id string) (Assignment, error) {
	return svc.repo.GetAssignmentByID(ctx, svc.db, id)
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, svc.db, filter)
}

// QueryAll returns every Assignment in insertion order.
func (svc *Service) QueryAll(ctx context.Context) ([]Assignment, error) {
	return svc.repo.QueryAssignments(ctx, svc.db, QueryFilter{})
}

// QueryFor returns the assignments visible to `usr`:
// the ones assigned to a student, the ones created by an instructor.
func (svc *Service) QueryFor(ctx context.Context, usr user.User) ([]Assignment, error) {
	switch usr.Role {
	case user.RoleStudent:
		return svc.Query(ctx, QueryFilter{AssignedTo: usr.ID})
	case user.RoleAdmin:
		return svc.Query(ctx, QueryFilter{CreatedBy: usr.ID})
	}
	return []Assignment{}, nil
}

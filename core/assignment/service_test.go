package assignment_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/assignment"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/services/email"
	"github.com/trezcool/kazi/storage/collection"
	"github.com/trezcool/kazi/tests"
)

var ctx = context.Background()

func strPtr(s string) *string { return &s }

func setup(t *testing.T) (*assignment.Service, interface{ SentMessages() []core.EmailMessage }) {
	store, _ := testutil.PrepareStore(t)
	testutil.MockNow(t, time.Date(2026, 10, 17, 9, 0, 0, 0, time.UTC))
	usrRepo := collection.NewUserRepository()

	testutil.CreateUser(t, store, usrRepo, "i1", "Amina Otieno", user.RoleAdmin)
	testutil.CreateUser(t, store, usrRepo, "i2", "Brian Kamau", user.RoleAdmin)
	testutil.CreateUser(t, store, usrRepo, "s1", "Chloe Mwangi", user.RoleStudent)
	testutil.CreateUser(t, store, usrRepo, "s2", "David Njoroge", user.RoleStudent)

	mailSvc := emailsvc.NewConsoleServiceMock(testutil.TestConfig())
	svc := assignment.NewService(store, collection.NewAssignmentRepository(), usrRepo, testutil.NewValidator(), mailSvc)
	return svc, mailSvc
}

func validNew() assignment.NewAssignment {
	return assignment.NewAssignment{
		Title:       "  Linear Algebra PS1 ",
		Description: "Chapter 2, problems 1 to 12",
		DueDate:     "2026-11-05",
		DriveLink:   "https://drive.example.com/ps1",
		AssignedTo:  []string{"s1", "s2", "s1", " "},
	}
}

func TestService_Create(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(na *assignment.NewAssignment)
		instructor string
		wantField  string // validation failure on this field
		wantErr    error
	}{
		{name: "blank title", mutate: func(na *assignment.NewAssignment) { na.Title = "   " }, instructor: "i1", wantField: "title"},
		{name: "blank description", mutate: func(na *assignment.NewAssignment) { na.Description = "" }, instructor: "i1", wantField: "description"},
		{name: "missing due date", mutate: func(na *assignment.NewAssignment) { na.DueDate = "" }, instructor: "i1", wantField: "dueDate"},
		{name: "bad due date", mutate: func(na *assignment.NewAssignment) { na.DueDate = "05/11/2026" }, instructor: "i1", wantField: "dueDate"},
		{name: "bad link", mutate: func(na *assignment.NewAssignment) { na.DriveLink = "ftp://nope" }, instructor: "i1", wantField: "driveLink"},
		{name: "no students", mutate: func(na *assignment.NewAssignment) { na.AssignedTo = []string{" "} }, instructor: "i1", wantField: "assignedTo"},
		{name: "unknown student", mutate: func(na *assignment.NewAssignment) { na.AssignedTo = []string{"s1", "s9"} }, instructor: "i1", wantField: "assignedTo"},
		{name: "instructor assigned", mutate: func(na *assignment.NewAssignment) { na.AssignedTo = []string{"i2"} }, instructor: "i1", wantField: "assignedTo"},
		{name: "student creator", instructor: "s1", wantErr: core.ErrForbidden},
		{name: "unknown creator", instructor: "x", wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, _ := setup(t)
			na := validNew()
			if tt.mutate != nil {
				tt.mutate(&na)
			}
			_, err := svc.Create(ctx, na, tt.instructor)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.Equal(t, tt.wantErr, errors.Cause(err))
				return
			}
			assert.Contains(t, fieldsOf(err), tt.wantField)
		})
	}

	t.Run("created", func(t *testing.T) {
		svc, mailSvc := setup(t)
		a, err := svc.Create(ctx, validNew(), "i1")
		require.NoError(t, err)

		assert.True(t, strings.HasPrefix(a.ID, "assign-"))
		assert.Equal(t, "Linear Algebra PS1", a.Title)
		assert.Equal(t, []string{"s1", "s2"}, a.AssignedTo)
		assert.Equal(t, "i1", a.CreatedBy)
		assert.Equal(t, "https://drive.example.com/ps1", a.DriveLink.String)
		assert.True(t, a.DueDate.Equal(time.Date(2026, 11, 5, 0, 0, 0, 0, time.UTC)))

		got, err := svc.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, got.ID)

		sent := mailSvc.SentMessages()
		require.Len(t, sent, 2)
		assert.Equal(t, "chloe.mwangi@test.cd", sent[0].To[0].Address)
		assert.Contains(t, sent[0].TextContent, "Linear Algebra PS1")
		assert.Contains(t, sent[0].TextContent, "2026-11-05")
	})
}

// fieldsOf lists the invalid fields of a validation failure.
func fieldsOf(err error) []string {
	var fields []string
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		for _, fe := range e {
			fields = append(fields, fe.Field())
		}
	case *core.ValidationError:
		for _, fe := range e.Fields {
			fields = append(fields, fe.Field)
		}
	}
	return fields
}

func TestService_Update(t *testing.T) {
	svc, _ := setup(t)
	a, err := svc.Create(ctx, validNew(), "i1")
	require.NoError(t, err)

	tests := []struct {
		name       string
		ua         assignment.UpdateAssignment
		instructor string
		wantField  string
		wantErr    error
		check      func(t *testing.T, got assignment.Assignment)
	}{
		{name: "not the owner", ua: assignment.UpdateAssignment{Title: strPtr("x")}, instructor: "i2", wantErr: core.ErrForbidden},
		{name: "student", ua: assignment.UpdateAssignment{Title: strPtr("x")}, instructor: "s1", wantErr: core.ErrForbidden},
		{name: "blank title", ua: assignment.UpdateAssignment{Title: strPtr(" ")}, instructor: "i1", wantField: "title"},
		{name: "empty roster", ua: assignment.UpdateAssignment{AssignedTo: []string{}}, instructor: "i1", wantField: "assignedTo"},
		{
			name:       "title only",
			ua:         assignment.UpdateAssignment{Title: strPtr("PS1 (revised)")},
			instructor: "i1",
			check: func(t *testing.T, got assignment.Assignment) {
				assert.Equal(t, "PS1 (revised)", got.Title)
				assert.Equal(t, a.Description, got.Description)
				assert.Equal(t, a.AssignedTo, got.AssignedTo)
			},
		},
		{
			name:       "clear link and move due date",
			ua:         assignment.UpdateAssignment{DriveLink: strPtr(""), DueDate: strPtr("2026-12-01")},
			instructor: "i1",
			check: func(t *testing.T, got assignment.Assignment) {
				assert.False(t, got.DriveLink.Valid)
				assert.True(t, got.DueDate.Equal(time.Date(2026, 12, 1, 0, 0, 0, 0, time.UTC)))
			},
		},
		{
			name:       "reassign",
			ua:         assignment.UpdateAssignment{AssignedTo: []string{"s2", "s2"}},
			instructor: "i1",
			check: func(t *testing.T, got assignment.Assignment) {
				assert.Equal(t, []string{"s2"}, got.AssignedTo)
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.Update(ctx, a.ID, tt.ua, tt.instructor)
			switch {
			case tt.wantErr != nil:
				assert.Equal(t, tt.wantErr, errors.Cause(err))
			case tt.wantField != "":
				assert.Contains(t, fieldsOf(err), tt.wantField)
			default:
				require.NoError(t, err)
				tt.check(t, got)
			}
		})
	}

	t.Run("unknown assignment", func(t *testing.T) {
		_, err := svc.Update(ctx, "nope", assignment.UpdateAssignment{Title: strPtr("x")}, "i1")
		assert.True(t, core.IsNotFound(err))
	})
}

func TestService_QueryFor(t *testing.T) {
	svc, _ := setup(t)
	a, err := svc.Create(ctx, validNew(), "i1")
	require.NoError(t, err)
	na := validNew()
	na.AssignedTo = []string{"s2"}
	b, err := svc.Create(ctx, na, "i2")
	require.NoError(t, err)

	tests := []struct {
		name    string
		usr     user.User
		wantIDs []string
	}{
		{name: "student sees assigned", usr: user.User{ID: "s1", Role: user.RoleStudent}, wantIDs: []string{a.ID}},
		{name: "student sees all assigned", usr: user.User{ID: "s2", Role: user.RoleStudent}, wantIDs: []string{a.ID, b.ID}},
		{name: "instructor sees own", usr: user.User{ID: "i2", Role: user.RoleAdmin}, wantIDs: []string{b.ID}},
		{name: "unknown role", usr: user.User{ID: "s1", Role: "GUEST"}, wantIDs: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := svc.QueryFor(ctx, tt.usr)
			require.NoError(t, err)
			ids := make([]string, 0, len(got))
			for _, x := range got {
				ids = append(ids, x.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAssignment_CheckOwner(t *testing.T) {
	a := assignment.Assignment{ID: "a1", CreatedBy: "i1"}
	assert.NoError(t, a.CheckOwner("i1"))
	assert.Equal(t, core.ErrForbidden, a.CheckOwner("i2"))
}

func TestAssignment_IsOverdue(t *testing.T) {
	a := assignment.Assignment{DueDate: time.Date(2026, 10, 10, 0, 0, 0, 0, time.UTC)}
	assert.True(t, a.IsOverdue(time.Date(2026, 10, 17, 0, 0, 0, 0, time.UTC)))
	assert.False(t, a.IsOverdue(time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)))
}

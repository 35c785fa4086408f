package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

// addUser validates and creates a user.User
func (cli *commandLine) addUser(ctx context.Context, nu user.NewUser) error {
	svc, err := cli.usrSvc(ctx)
	if err != nil {
		return err
	}
	if err = nu.Validate(svc); err != nil {
		return cli.validationError(err)
	}

	usr, err := svc.Create(ctx, nu)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "created %s (%s)\n", usr.ID, usr.Role)
	return nil
}

func (cli *commandLine) listUsers(ctx context.Context) error {
	svc, err := cli.usrSvc(ctx)
	if err != nil {
		return err
	}
	users, err := svc.QueryAll(ctx)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tEMAIL\tROLE")
	for _, u := range users {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", u.ID, u.Name, u.Email, u.Role)
	}
	return w.Flush()
}

// validationError flattens validation failures into one readable line.
func (cli *commandLine) validationError(err error) error {
	var flds []core.FieldError
	switch e := errors.Cause(err).(type) {
	case validator.ValidationErrors:
		flds = core.TranslateValidationErrors(e, cli.translator)
	case *core.ValidationError:
		flds = e.Fields
	default:
		return err
	}

	msgs := make([]string, 0, len(flds))
	for _, f := range flds {
		msgs = append(msgs, f.Field+": "+f.Error)
	}
	return errors.New("invalid user: " + strings.Join(msgs, "; "))
}

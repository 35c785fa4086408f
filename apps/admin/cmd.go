package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
	"github.com/trezcool/kazi/storage"
	"github.com/trezcool/kazi/storage/collection"
)

var (
	// mockable
	openStoreFunc = func(ctx context.Context, conf *core.Config) (core.KVStore, error) {
		return storage.Open(ctx, conf)
	}

	errHelp = errors.New("help provided")
)

type commandLine struct {
	conf       *core.Config
	out        io.Writer
	validate   *validator.Validate
	translator ut.Translator
	db         core.KVStore // opened on first use
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate                              - create the database (postgres) and apply the migrations")
	fmt.Fprintln(cli.out, "  seed [-force]                        - load the bundled dataset (once, unless forced)")
	fmt.Fprintln(cli.out, "  adduser -name NAME -email EMAIL -role STUDENT|ADMIN - create a user")
	fmt.Fprintln(cli.out, "  users                                - list users")
}

func (cli *commandLine) store(ctx context.Context) (core.KVStore, error) {
	if cli.db == nil {
		db, err := openStoreFunc(ctx, cli.conf)
		if err != nil {
			return nil, err
		}
		cli.db = db
	}
	return cli.db, nil
}

func (cli *commandLine) close() error {
	if cli.db == nil {
		return nil
	}
	return cli.db.Close()
}

func (cli *commandLine) usrSvc(ctx context.Context) (*user.Service, error) {
	db, err := cli.store(ctx)
	if err != nil {
		return nil, err
	}
	return user.NewService(db, collection.NewUserRepository(), cli.validate), nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	seedCmd := flag.NewFlagSet("seed", flag.ContinueOnError)
	seedCmd.SetOutput(cli.out)
	seedForce := seedCmd.Bool("force", false, "Overwrite the users, assignments and submissions even if the store is initialized.")

	addUserCmd := flag.NewFlagSet("adduser", flag.ContinueOnError)
	addUserCmd.SetOutput(cli.out)
	addUserName := addUserCmd.String("name", "", "The user's full name.")
	addUserEmail := addUserCmd.String("email", "", "The user's email.")
	addUserRole := addUserCmd.String("role", string(user.RoleStudent), "STUDENT or ADMIN (instructor).")

	switch args[1] {
	case "migrate":
		return cli.migrate(ctx)
	case "seed":
		if err := seedCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.seed(ctx, *seedForce)
	case "adduser":
		if err := addUserCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *addUserName == "" || *addUserEmail == "" {
			addUserCmd.Usage()
			return errHelp
		}
		return cli.addUser(ctx, user.NewUser{Name: *addUserName, Email: *addUserEmail, Role: user.Role(*addUserRole)})
	case "users":
		return cli.listUsers(ctx)
	default:
		cli.printUsage()
		return errHelp
	}
}

func (cli *commandLine) seed(ctx context.Context, force bool) error {
	db, err := cli.store(ctx)
	if err != nil {
		return err
	}
	ds, err := collection.BundledDataset()
	if err != nil {
		return err
	}
	seeded, err := collection.Seed(ctx, db, ds, force)
	if err != nil {
		return err
	}
	if !seeded {
		fmt.Fprintln(cli.out, "store already initialized; use -force to reseed")
		return nil
	}
	fmt.Fprintf(cli.out, "seeded %d users, %d assignments, %d submissions\n",
		len(ds.Users), len(ds.Assignments), len(ds.Submissions))
	return nil
}

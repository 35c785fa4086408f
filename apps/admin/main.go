package main

import (
	"fmt"
	"os"

	"github.com/trezcool/kazi/core"
	"github.com/trezcool/kazi/core/user"
)

func main() {
	conf := core.NewConfig()

	translator := core.NewTranslator()
	validate := core.NewValidator(translator)
	user.InitValidators(validate, translator)

	// start CLI
	cli := commandLine{
		conf:       conf,
		out:        os.Stdout,
		validate:   validate,
		translator: translator,
	}
	err := cli.run(os.Args)
	if cErr := cli.close(); cErr != nil && err == nil {
		err = cErr
	}
	if err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		os.Exit(1)
	}
}

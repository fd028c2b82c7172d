package main

import (
	"database/sql"
	"errors"
	"flag"
	"fmt"

	"github.com/trezcool/karo/core/fee"
)

var errHelp = errors.New("help provided")

type commandLine struct {
	db     *sql.DB
	feeSvc *fee.Service
}

func (cli *commandLine) printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  migrate [goose command] - run database migrations (default: up)")
	fmt.Println("  assignfees -school SCHOOL_ID -structure STRUCTURE_ID - assign a fee structure to its eligible students")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	assignCmd := flag.NewFlagSet("assignfees", flag.ExitOnError)
	assignSchool := assignCmd.String("school", "", "The school's ID.")
	assignStructure := assignCmd.String("structure", "", "The fee structure's ID.")

	switch args[1] {
	case "migrate":
		gooseArgs := args[2:]
		if len(gooseArgs) == 0 {
			gooseArgs = []string{"up"}
		}
		return cli.migrate(gooseArgs)
	case "assignfees":
		if err := assignCmd.Parse(args[2:]); err != nil {
			return err
		}
		if *assignSchool == "" || *assignStructure == "" {
			assignCmd.Usage()
			return errHelp
		}
		return cli.assignFees(*assignSchool, *assignStructure)
	default:
		cli.printUsage()
		return errHelp
	}
}

package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"golang.org/x/term"

	"github.com/trezcool/quickgrade/core/grading"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp      = errors.New("help provided")
	errNotDelete = errors.New("deletion cancelled")
)

type commandLine struct {
	db       *sqlx.DB
	svc      *grading.Service
	validate *validator.Validate
	in       io.Reader
	out      io.Writer
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate - create the missing tables")
	fmt.Fprintln(cli.out, "  saves [-search TEXT] [-ordering FIELDS] - list saved documents")
	fmt.Fprintln(cli.out, "  export -save ID [-out FILE] - write a saved document as a Moodle grading worksheet")
	fmt.Fprintln(cli.out, "  catalog -save ID [-out FILE] - write the feedback catalog of a saved document as YAML")
	fmt.Fprintln(cli.out, "  import -csv FILE -assignment NAME [-catalog FILE] - save a Moodle grading worksheet")
	fmt.Fprintln(cli.out, "  delete -save ID [-yes] - delete a saved document")
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}

	savesCmd := flag.NewFlagSet("saves", flag.ContinueOnError)
	savesSearch := savesCmd.String("search", "", "Only list saves whose assignment name contains TEXT.")
	savesOrdering := savesCmd.String("ordering", "", "Comma separated fields (assignment_name, student_count, saved_at); prefix with - to sort descending.")

	exportCmd := flag.NewFlagSet("export", flag.ContinueOnError)
	exportSave := exportCmd.String("save", "", "The id of the saved document.")
	exportOut := exportCmd.String("out", "", "The worksheet file to write (stdout by default).")

	catalogCmd := flag.NewFlagSet("catalog", flag.ContinueOnError)
	catalogSave := catalogCmd.String("save", "", "The id of the saved document.")
	catalogOut := catalogCmd.String("out", "", "The catalog file to write (stdout by default).")

	importCmd := flag.NewFlagSet("import", flag.ContinueOnError)
	importCSV := importCmd.String("csv", "", "The grading worksheet downloaded from Moodle.")
	importAssignment := importCmd.String("assignment", "", "The assignment name.")
	importCatalog := importCmd.String("catalog", "", "A YAML feedback catalog to grade with.")

	deleteCmd := flag.NewFlagSet("delete", flag.ContinueOnError)
	deleteSave := deleteCmd.String("save", "", "The id of the saved document.")
	deleteYes := deleteCmd.Bool("yes", false, "Do not ask for confirmation.")

	for _, fs := range []*flag.FlagSet{savesCmd, exportCmd, catalogCmd, importCmd, deleteCmd} {
		fs.SetOutput(cli.out)
	}

	switch args[1] {
	case "migrate":
		return cli.migrate()
	case "saves":
		if err := savesCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		return cli.listSaves(*savesSearch, *savesOrdering)
	case "export":
		if err := exportCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *exportSave == "" {
			exportCmd.Usage()
			return errHelp
		}
		return cli.exportSave(*exportSave, *exportOut)
	case "catalog":
		if err := catalogCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *catalogSave == "" {
			catalogCmd.Usage()
			return errHelp
		}
		return cli.exportCatalog(*catalogSave, *catalogOut)
	case "import":
		if err := importCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *importCSV == "" || *importAssignment == "" {
			importCmd.Usage()
			return errHelp
		}
		return cli.importWorksheet(*importCSV, *importAssignment, *importCatalog)
	case "delete":
		if err := deleteCmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *deleteSave == "" {
			deleteCmd.Usage()
			return errHelp
		}
		if !*deleteYes {
			if err := cli.confirm(fmt.Sprintf("Delete save %s? [y/N] ", *deleteSave)); err != nil {
				return err
			}
		}
		return cli.deleteSave(*deleteSave)
	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks for a confirmation on the terminal. Without a terminal, -yes is required.
func (cli *commandLine) confirm(prompt string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		fmt.Fprintln(cli.out, "not a terminal: use -yes to confirm")
		return errNotDelete
	}
	fmt.Fprint(cli.out, prompt)
	answer, err := bufio.NewReader(cli.in).ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	default:
		return errNotDelete
	}
}

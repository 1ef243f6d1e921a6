package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/quickgrade/core"
	"github.com/trezcool/quickgrade/core/grading"
	"github.com/trezcool/quickgrade/services/catalogfile"
	"github.com/trezcool/quickgrade/services/worksheet"
	"github.com/trezcool/quickgrade/storage/database"
)

func (cli *commandLine) migrate() error {
	if err := database.Migrate(cli.db); err != nil {
		return err
	}
	fmt.Fprintln(cli.out, "database migrated")
	return nil
}

func (cli *commandLine) listSaves(search, ordering string) error {
	var orderings []core.DBOrdering
	for _, field := range strings.Split(ordering, ",") {
		if field = strings.TrimSpace(field); field == "" {
			continue
		}
		ascending := !strings.HasPrefix(field, "-")
		orderings = append(orderings, core.DBOrdering{Field: strings.TrimPrefix(field, "-"), Ascending: ascending})
	}

	filter := grading.SaveFilter{Search: search}
	filter.Clean()
	saves, err := cli.svc.QuerySaves(context.Background(), filter, orderings...)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tASSIGNMENT\tSTUDENTS\tSAVED AT")
	for _, s := range saves {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", s.ID, s.AssignmentName, s.StudentCount, s.Timestamp.Format(time.RFC3339))
	}
	return tw.Flush()
}

func (cli *commandLine) exportSave(saveID, out string) error {
	doc, err := cli.svc.GetSave(context.Background(), saveID)
	if err != nil {
		return err
	}
	return cli.writeTo(out, func(w io.Writer) error {
		return worksheet.Export(w, doc.Students)
	})
}

func (cli *commandLine) exportCatalog(saveID, out string) error {
	doc, err := cli.svc.GetSave(context.Background(), saveID)
	if err != nil {
		return err
	}
	return cli.writeTo(out, func(w io.Writer) error {
		return catalogfile.Write(w, doc.FeedbackItems)
	})
}

// writeTo calls write with the file at path, or with cli.out when path is empty.
func (cli *commandLine) writeTo(path string, write func(w io.Writer) error) error {
	if path == "" {
		return write(cli.out)
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating output file")
	}
	if err = write(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "closing output file")
}

func (cli *commandLine) importWorksheet(csvPath, assignment, catalogPath string) error {
	f, err := os.Open(csvPath)
	if err != nil {
		return errors.Wrap(err, "opening worksheet")
	}
	defer func() { _ = f.Close() }()

	p, err := worksheet.Import(f, assignment)
	if err != nil {
		return err
	}
	if p.FeedbackItems, err = catalogfile.Load(catalogPath); err != nil {
		return err
	}
	if err = p.Validate(cli.validate); err != nil {
		return err
	}

	state, err := cli.svc.Open(p)
	if err != nil {
		return err
	}
	defer func() { _ = cli.svc.Close(state.ID) }()

	doc, err := cli.svc.Save(context.Background(), state.ID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d students of %q saved as %s\n", len(doc.Students), doc.AssignmentName, doc.ID)
	return nil
}

func (cli *commandLine) deleteSave(saveID string) error {
	if err := cli.svc.DeleteSaves(context.Background(), saveID); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "save %s deleted\n", saveID)
	return nil
}

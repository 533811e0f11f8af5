package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/syssam/objgraph"
	"github.com/syssam/objgraph/query"
	ql "github.com/syssam/objgraph/querylanguage"
	"github.com/syssam/objgraph/schema"
	"github.com/syssam/objgraph/store"
	"github.com/syssam/objgraph/tx"
)

func newDemoCmd(a *app) *cobra.Command {
	var snapshot string
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the Company/Employee scenario",
		Long: `Builds the configured model, commits a company with one employee,
fetches the employee through its company, then deletes the company and
shows that the cascade removed the employee.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sc, err := loadModel(a.cfg.GetString(cfgKeyModel))
			if err != nil {
				return err
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), sc, a.log, a.jsonOutput, snapshot)
		},
	}
	cmd.Flags().StringVar(&snapshot, "snapshot", "", "write a msgpack snapshot of the store after the first commit")
	return cmd
}

// demoReport collects what the demo prints.
type demoReport struct {
	Commit    *objgraph.Change `json:"commit"`
	Employees []string         `json:"employees"`
	Company   string           `json:"company"`
	Deleted   *objgraph.Change `json:"deleted"`
	Remaining int              `json:"remaining"`
	Stats     string           `json:"stats"`
}

func runDemo(ctx context.Context, w io.Writer, sc *schema.Schema, log *zap.Logger, asJSON bool, snapshot string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	s := store.New(sc, store.WithLogger(log))
	eng := query.New(s, query.WithLogger(log))
	c := tx.NewContext(s, tx.WithLogger(log))

	var notified []objgraph.Change
	c.Subscribe(func(ch objgraph.Change) { notified = append(notified, ch) })

	if err := c.Begin(); err != nil {
		return err
	}
	acme, err := c.Insert("Company", objgraph.Attrs{"name": objgraph.String("ACME")})
	if err != nil {
		return err
	}
	john, err := c.Insert("Employee", objgraph.Attrs{"name": objgraph.String("John")})
	if err != nil {
		return err
	}
	if err := c.Relate(john, "company", acme); err != nil {
		return err
	}
	var r demoReport
	if r.Commit, err = c.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	if snapshot != "" {
		if err := writeSnapshot(s, snapshot); err != nil {
			return err
		}
	}

	res, err := eng.Fetch(ctx, "Employee", ql.FieldEQ("name", "John"))
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	for emp := range res.All() {
		r.Employees = append(r.Employees, emp.Get("name").String())
		company, err := emp.One("company")
		if err != nil {
			return err
		}
		r.Company = company.Get("name").String()
	}

	if err := c.Begin(); err != nil {
		return err
	}
	if err := c.Delete(acme); err != nil {
		return err
	}
	if r.Deleted, err = c.Commit(ctx); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	res, err = eng.Fetch(ctx, "Employee", nil)
	if err != nil {
		return fmt.Errorf("fetch: %w", err)
	}
	r.Remaining = res.Count()
	r.Stats = s.Stats().Snapshot().String()
	log.Debug("demo finished", zap.Int("notifications", len(notified)))

	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(r)
	}
	fmt.Fprintf(w, "commit: inserted=%v\n", r.Commit.Inserted)
	fmt.Fprintf(w, "fetch Employee where name == \"John\": %v (company.name = %s)\n", r.Employees, r.Company)
	fmt.Fprintf(w, "delete Company ACME: deleted=%v\n", r.Deleted.Deleted)
	fmt.Fprintf(w, "fetch Employee: %d result(s)\n", r.Remaining)
	fmt.Fprintf(w, "notifications: %d\n", len(notified))
	fmt.Fprintf(w, "stats: %s\n", r.Stats)
	return nil
}

func writeSnapshot(s *store.Store, path string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()
	return s.WriteSnapshot(f)
}

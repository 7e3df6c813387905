package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"backend/internal/config"
	"backend/internal/explorer"
	"backend/internal/logger"
	"backend/internal/models"
	"backend/internal/server"
)

type exploreFlags struct {
	server string
	token  string
	local  bool
	page   int
	limit  int
	ack    bool
	data   string
}

func newExploreCmd() *cobra.Command {
	f := &exploreFlags{}
	cmd := &cobra.Command{
		Use:   "explore",
		Short: "Browse and edit tables from the terminal",
	}
	cmd.PersistentFlags().StringVar(&f.server, "server", "http://localhost:8080", "API base URL")
	cmd.PersistentFlags().StringVar(&f.token, "token", os.Getenv("ADMIN_TOKEN"), "bearer token (defaults to $ADMIN_TOKEN)")
	cmd.PersistentFlags().BoolVar(&f.local, "local", false, "talk to the database directly instead of the API")
	cmd.PersistentFlags().IntVar(&f.limit, "limit", explorer.DefaultLimit, "rows per page")
	cmd.PersistentFlags().BoolVar(&f.ack, "ack", false, "accept a guessed row identity")

	tables := &cobra.Command{
		Use:   "tables",
		Short: "List tables with their row counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				entries, err := ex.Tables(ctx)
				if err != nil {
					return err
				}
				printTables(out, entries)
				return nil
			})
		},
	}

	schema := &cobra.Command{
		Use:   "schema TABLE",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				st, err := ex.SelectTable(ctx, explorer.State{Limit: 1}, args[0])
				if st.Schema == nil {
					return err
				}
				printSchema(out, st)
				return nil
			})
		},
	}

	rows := &cobra.Command{
		Use:   "rows TABLE",
		Short: "Show one page of rows",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				st, err := f.open(ctx, ex, args[0])
				if err != nil {
					return err
				}
				if f.page > 1 {
					if st, err = ex.GoToPage(ctx, st, f.page); err != nil {
						return err
					}
				}
				printPage(out, st)
				return nil
			})
		},
	}
	rows.Flags().IntVar(&f.page, "page", 1, "page number")

	add := &cobra.Command{
		Use:   "add TABLE",
		Short: "Insert a row from a JSON object",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				fields, err := parseFields(f.data)
				if err != nil {
					return err
				}
				st, err := f.open(ctx, ex, args[0])
				if err != nil {
					return err
				}
				if st, err = ex.BeginAdd(st); err != nil {
					return err
				}
				if st, err = ex.Submit(ctx, st, fields); err != nil {
					return err
				}
				printPage(out, st)
				return nil
			})
		},
	}
	add.Flags().StringVar(&f.data, "data", "", "row as a JSON object")
	_ = add.MarkFlagRequired("data")

	edit := &cobra.Command{
		Use:   "edit TABLE IDENTITY",
		Short: "Update the row addressed by IDENTITY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				fields, err := parseFields(f.data)
				if err != nil {
					return err
				}
				st, err := f.open(ctx, ex, args[0])
				if err != nil {
					return err
				}
				if st, err = ex.BeginEdit(st, identityRow(st, args[1])); err != nil {
					return err
				}
				if st, err = ex.Submit(ctx, st, fields); err != nil {
					return err
				}
				printPage(out, st)
				return nil
			})
		},
	}
	edit.Flags().StringVar(&f.data, "data", "", "changed fields as a JSON object")
	_ = edit.MarkFlagRequired("data")

	del := &cobra.Command{
		Use:   "delete TABLE IDENTITY",
		Short: "Delete the row addressed by IDENTITY",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return f.run(cmd, func(ctx context.Context, ex *explorer.Explorer, out io.Writer) error {
				st, err := f.open(ctx, ex, args[0])
				if err != nil {
					return err
				}
				if st, err = ex.DeleteRow(ctx, st, identityRow(st, args[1])); err != nil {
					return err
				}
				printPage(out, st)
				return nil
			})
		},
	}

	cmd.AddCommand(tables, schema, rows, add, edit, del)
	return cmd
}

// run builds an Explorer over the API or the local database and hands it
// to fn.
func (f *exploreFlags) run(cmd *cobra.Command, fn func(context.Context, *explorer.Explorer, io.Writer) error) error {
	ctx := cmd.Context()
	if !f.local {
		return fn(ctx, explorer.New(explorer.NewClient(f.server, f.token, nil)), cmd.OutOrStdout())
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Environment)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := server.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	return fn(ctx, explorer.New(app.LocalAPI()), cmd.OutOrStdout())
}

// open selects table and warns about a guessed identity on stderr.
func (f *exploreFlags) open(ctx context.Context, ex *explorer.Explorer, table string) (explorer.State, error) {
	st, err := ex.SelectTable(ctx, explorer.State{Limit: f.limit}, table)
	if err != nil {
		return st, err
	}
	if warning := st.IdentityWarning(); warning != "" {
		if f.ack {
			st = ex.AcknowledgeIdentity(st)
		} else {
			fmt.Fprintln(os.Stderr, "warning:", warning)
		}
	}
	return st, nil
}

// identityRow stands in for a listed row when the admin names it by identity.
func identityRow(st explorer.State, identity string) models.Row {
	return models.Row{st.Schema.Identity.Column: models.String(identity)}
}

func parseFields(data string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewBufferString(data))
	dec.UseNumber()
	var fields map[string]any
	if err := dec.Decode(&fields); err != nil {
		return nil, fmt.Errorf("--data must be a JSON object: %w", err)
	}
	if fields == nil {
		return nil, fmt.Errorf("--data must be a JSON object")
	}
	return fields, nil
}

func printTables(out io.Writer, entries []models.TableCatalogEntry) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tROWS")
	for _, e := range entries {
		count := "?"
		if e.RowCount != nil {
			count = fmt.Sprint(*e.RowCount)
			if e.RowCountApproximate {
				count = "~" + count
			}
		}
		fmt.Fprintf(w, "%s\t%s\n", e.Name, count)
	}
	_ = w.Flush()
}

func printSchema(out io.Writer, st explorer.State) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "COLUMN\tTYPE\tNULL\tKEY\tDEFAULT")
	for _, c := range st.Schema.Columns {
		def := ""
		if c.DefaultValue != nil {
			def = *c.DefaultValue
		}
		key := string(c.KeyRole)
		if c.ReadOnly {
			key += ",generated"
		}
		fmt.Fprintf(w, "%s\t%s\t%t\t%s\t%s\n", c.Name, c.Type, c.Nullable, key, def)
	}
	_ = w.Flush()

	id := st.Schema.Identity
	fmt.Fprintf(out, "\nidentity: %s (%s)\n", id.Column, id.Source)
}

func printPage(out io.Writer, st explorer.State) {
	cols := st.Schema.ColumnNames()
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, strings.ToUpper(strings.Join(cols, "\t")))
	for _, row := range st.Page.Rows {
		cells := make([]string, len(cols))
		for i, name := range cols {
			v := row[name]
			if v.IsNull() {
				cells[i] = "NULL"
			} else {
				cells[i] = v.Text()
			}
		}
		fmt.Fprintln(w, strings.Join(cells, "\t"))
	}
	_ = w.Flush()

	p := st.Page.Pagination
	total := fmt.Sprint(p.Total)
	if p.Approximate {
		total = "~" + total
	}
	fmt.Fprintf(out, "\npage %d of %d, %s rows\n", p.Page, p.TotalPages, total)
}

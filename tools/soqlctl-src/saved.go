package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/tobilg/caddyserver-soqlstudio-module/database"
	"github.com/tobilg/caddyserver-soqlstudio-module/savedquery"
)

// savedCmd creates the saved subcommand with list/add/update/remove/show
func (a *app) savedCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved",
		Short: "Manage saved queries",
		Long: `Manage the saved queries stored in a studio storage file.

Point --storage at the same file the server's storage_path directive uses.
Stop the server first when using the duckdb driver: DuckDB files accept a
single writer process.`,
	}

	// saved list
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List all saved queries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.withStore(cmd.Context(), func(store *savedquery.Store) error {
				return a.printSavedList(cmd.OutOrStdout(), store.List())
			})
		},
	}

	// saved add
	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a saved query",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			desc, _ := cmd.Flags().GetString("desc")
			soql, _ := cmd.Flags().GetString("soql")
			return a.withStore(cmd.Context(), func(store *savedquery.Store) error {
				q, err := store.Save(cmd.Context(), name, desc, soql)
				if err != nil {
					return savedError(err, 0)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Saved query '%s' (id %d)\n", q.Name, q.ID)
				return nil
			})
		},
	}
	addCmd.Flags().StringP("name", "n", "", "Query name (required)")
	addCmd.Flags().String("desc", "", "Query description")
	addCmd.Flags().StringP("soql", "q", "", "SOQL text (required)")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("soql")

	// saved update
	updateCmd := &cobra.Command{
		Use:   "update <id>",
		Short: "Update a saved query",
		Long:  "Replace the fields of a saved query. Fields without a flag keep their current value.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *savedquery.Store) error {
				current, err := store.Get(id)
				if err != nil {
					return savedError(err, id)
				}
				name, desc, soql := current.Name, current.Description, current.SOQL
				if cmd.Flags().Changed("name") {
					name, _ = cmd.Flags().GetString("name")
				}
				if cmd.Flags().Changed("desc") {
					desc, _ = cmd.Flags().GetString("desc")
				}
				if cmd.Flags().Changed("soql") {
					soql, _ = cmd.Flags().GetString("soql")
				}

				q, err := store.Update(cmd.Context(), id, name, desc, soql)
				if err != nil {
					return savedError(err, id)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Updated saved query '%s' (id %d)\n", q.Name, q.ID)
				return nil
			})
		},
	}
	updateCmd.Flags().StringP("name", "n", "", "New query name")
	updateCmd.Flags().String("desc", "", "New query description")
	updateCmd.Flags().StringP("soql", "q", "", "New SOQL text")

	// saved remove
	removeCmd := &cobra.Command{
		Use:   "remove <id>",
		Short: "Remove a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *savedquery.Store) error {
				q, err := store.Get(id)
				if err != nil {
					return savedError(err, id)
				}
				store.Delete(cmd.Context(), id)
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed saved query '%s' (id %d)\n", q.Name, q.ID)
				return nil
			})
		},
	}

	// saved show
	showCmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a saved query",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			return a.withStore(cmd.Context(), func(store *savedquery.Store) error {
				q, err := store.Get(id)
				if err != nil {
					return savedError(err, id)
				}
				return a.printSavedQuery(cmd.OutOrStdout(), q)
			})
		},
	}

	cmd.AddCommand(listCmd, addCmd, updateCmd, removeCmd, showCmd)
	return cmd
}

// withStore opens the configured storage, loads the saved queries and runs
// fn. The storage is closed afterwards.
func (a *app) withStore(ctx context.Context, fn func(*savedquery.Store) error) error {
	if ctx == nil {
		ctx = context.Background()
	}
	path := a.v.GetString("storage.path")
	if path == "" {
		return errors.New("storage path is required (--storage, SOQLCTL_STORAGE_PATH or storage.path in the config file)")
	}

	mgr, err := database.NewManager(database.Config{
		StorageDriver: a.v.GetString("storage.driver"),
		StoragePath:   path,
		Threads:       1,
		Logger:        a.logger,
	})
	if err != nil {
		return fmt.Errorf("failed to open storage: %w", err)
	}
	defer mgr.Close()

	a.logger.Debug("Opened studio storage",
		zap.String("driver", mgr.StorageDriver()),
		zap.String("path", path),
	)

	store := savedquery.NewStore(ctx, savedquery.NewKVPersister(mgr), savedquery.WithLogger(a.logger))
	return fn(store)
}

func (a *app) printSavedList(w io.Writer, queries []savedquery.SavedQuery) error {
	if a.output() == outputJSON {
		return writeIndentedJSON(w, queries)
	}
	if len(queries) == 0 {
		fmt.Fprintln(w, "No saved queries found.")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCREATED\tDESCRIPTION")
	fmt.Fprintln(tw, "--\t----\t-------\t-----------")
	for _, q := range queries {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", q.ID, q.Name, q.CreatedAt.Format(time.RFC3339), q.Description)
	}
	return tw.Flush()
}

func (a *app) printSavedQuery(w io.Writer, q savedquery.SavedQuery) error {
	if a.output() == outputJSON {
		return writeIndentedJSON(w, q)
	}
	fmt.Fprintf(w, "  ID:           %d\n", q.ID)
	fmt.Fprintf(w, "  Name:         %s\n", q.Name)
	fmt.Fprintf(w, "  Description:  %s\n", q.Description)
	fmt.Fprintf(w, "  Created:      %s\n", q.CreatedAt.Format(time.RFC3339))
	fmt.Fprintln(w)
	fmt.Fprintln(w, q.SOQL)
	return nil
}

// savedError turns store errors into messages that name the query.
func savedError(err error, id int64) error {
	switch {
	case errors.Is(err, savedquery.ErrNotFound):
		return fmt.Errorf("saved query %d not found", id)
	case errors.Is(err, savedquery.ErrEmptyName):
		return errors.New("query name must not be empty")
	default:
		return err
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid saved query id %q", s)
	}
	return id, nil
}

func writeIndentedJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/huangang/auditdesk/backend/internal/services"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"
)

func (c *cli) listCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Lists one page of audit logs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := c.filter()
			if err != nil {
				return err
			}
			page, err := c.app.logs.FetchPage(cmd.Context(), c.v.GetInt("page-size"), filter, c.v.GetString("cursor"))
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(page)
			}
			c.printEntries(page.Entries)
			if page.HasMore {
				fmt.Fprintf(c.out, "\nMore results: --cursor %s\n", page.Cursor)
			}
			return nil
		},
	}
	addFilterFlags(cmd, true)
	cmd.Flags().Int("page-size", 0, "Entries per page (default from config)")
	cmd.Flags().String("cursor", "", "Cursor printed by the previous page")
	return cmd
}

func (c *cli) countCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Counts audit logs matching the filter",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := c.filter()
			if err != nil {
				return err
			}
			n, err := c.app.logs.CountMatching(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(map[string]int64{"count": n})
			}
			fmt.Fprintln(c.out, n)
			return nil
		},
	}
	addFilterFlags(cmd, false)
	return cmd
}

func (c *cli) actionsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "actions",
		Short: "Lists the distinct actions among recent audit logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			actions, err := c.app.logs.ListDistinctActions(cmd.Context())
			if err != nil {
				return err
			}
			if c.jsonOutput() {
				return c.printJSON(actions)
			}
			for _, a := range actions {
				fmt.Fprintln(c.out, a)
			}
			return nil
		},
	}
}

func (c *cli) exportCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Exports matching audit logs as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter, err := c.filter()
			if err != nil {
				return err
			}
			entries, err := c.app.logs.ExportMatching(cmd.Context(), filter)
			if err != nil {
				return err
			}
			return c.printJSON(entries)
		},
	}
	addFilterFlags(cmd, true)
	return cmd
}

func (c *cli) pruneCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Deletes audit logs in batches",
		Long: "Deletes every log (--all), logs older than N days (--older-than) " +
			"or logs matching the filter flags. Batches that fail are reported " +
			"and the remaining batches still run.",
		RunE: func(cmd *cobra.Command, args []string) error {
			all := c.v.GetBool("all")
			days := c.v.GetInt("older-than")

			filter, err := c.filter()
			if err != nil {
				return err
			}
			hasFilter := (filter.Action != "" && filter.Action != services.ActionAll) ||
				filter.PerformedBy != "" || filter.StartDate != nil || filter.EndDate != nil

			modes := 0
			for _, set := range []bool{all, cmd.Flags().Changed("older-than"), hasFilter} {
				if set {
					modes++
				}
			}
			if modes != 1 {
				return errors.New("specify exactly one of --all, --older-than or filter flags")
			}

			var result *services.DeletionResult
			switch {
			case all:
				result, err = c.app.logs.DeleteAll(cmd.Context())
			case hasFilter:
				result, err = c.app.logs.DeleteMatching(cmd.Context(), filter)
			default:
				result, err = c.app.logs.DeleteOlderThan(cmd.Context(), days)
			}
			if err != nil {
				return err
			}

			if c.jsonOutput() {
				if err := c.printJSON(result); err != nil {
					return err
				}
			} else {
				fmt.Fprintln(c.out, result.Message)
				for _, e := range result.Errors {
					fmt.Fprintf(c.out, "  %s\n", e)
				}
			}
			if !result.Success {
				return errors.New("deletion failed")
			}
			return nil
		},
	}
	addFilterFlags(cmd, false)
	cmd.Flags().Bool("all", false, "Delete every audit log")
	cmd.Flags().Int("older-than", 0, "Delete logs older than this many days")
	return cmd
}

func (c *cli) printJSON(v any) error {
	o, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(c.out, string(o))
	return nil
}

func (c *cli) printEntries(entries []services.LogEntry) {
	table := tablewriter.NewWriter(c.out)
	table.Header([]string{"timestamp", "action", "target", "performed by", "ip"})
	for _, e := range entries {
		table.Append([]string{
			e.Timestamp.Format("2006-01-02 15:04:05"),
			e.Action,
			e.TargetID,
			e.PerformedByEmail,
			e.IP,
		})
	}
	table.Render()
	fmt.Fprintf(c.out, "%d entries\n", len(entries))
}

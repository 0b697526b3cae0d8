package main

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/formtrack/internal/reconcile"
	"github.com/mesh-intelligence/formtrack/internal/tracker"
	"github.com/mesh-intelligence/formtrack/pkg/types"
)

func (a *app) viewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view <person-id>",
		Short: "Show one person's checklist and progress",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, wb, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer wb.Close()

			pv, err := svc.View(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return a.output(pv, func(w io.Writer) { renderPersonView(w, pv) })
		},
	}
}

func (a *app) reportCmd() *cobra.Command {
	var (
		pendingOnly bool
		query       string
	)
	cmd := &cobra.Command{
		Use:     "report",
		Aliases: []string{"admin"},
		Short:   "Summarize completion for everyone in the matrix",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, wb, err := a.openService(cmd.Context())
			if err != nil {
				return err
			}
			defer wb.Close()

			report, err := svc.Report(cmd.Context())
			if err != nil {
				return err
			}
			if pendingOnly {
				report = reconcile.PendingOnly(report)
			}
			report = reconcile.FilterPeople(report, query)
			return a.output(report, func(w io.Writer) { renderReport(w, report) })
		},
	}
	cmd.Flags().BoolVar(&pendingOnly, "pending", false, "only list people with pending documents")
	cmd.Flags().StringVarP(&query, "query", "q", "", "only list people whose id or name contains this text")
	return cmd
}

func (a *app) markCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mark <person-id> <document-name>",
		Short: "Record a document as completed",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args, (*tracker.Service).MarkComplete)
		},
	}
}

func (a *app) unmarkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "unmark <person-id> <document-name>",
		Short: "Remove a document's completion record",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.mutate(cmd, args, (*tracker.Service).MarkIncomplete)
		},
	}
}

type mutateFunc func(*tracker.Service, context.Context, string, string) (types.MutationResult, error)

// mutate runs one status mutation and prints its result. Retracting a
// record that does not exist is a user error.
func (a *app) mutate(cmd *cobra.Command, args []string, fn mutateFunc) error {
	svc, wb, err := a.openService(cmd.Context())
	if err != nil {
		return err
	}
	defer wb.Close()

	result, err := fn(svc, cmd.Context(), args[0], args[1])
	if err != nil {
		return err
	}
	if err := a.output(map[string]string{"result": string(result)}, func(w io.Writer) {
		fmt.Fprintf(w, "%s: %s %q\n", result, strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
	}); err != nil {
		return err
	}
	if result == types.ResultNotFound {
		return userErrorf("no completion record for %s %q", strings.TrimSpace(args[0]), strings.TrimSpace(args[1]))
	}
	return nil
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/dharsanguruparan/InvoiceDrop/internal/client"
	"github.com/dharsanguruparan/InvoiceDrop/internal/model"
	"github.com/dharsanguruparan/InvoiceDrop/internal/query"
)

func newUploadCmd() *cobra.Command {
	var (
		wait        bool
		interval    time.Duration
		maxAttempts int
	)
	cmd := &cobra.Command{
		Use:   "upload FILE.pdf...",
		Short: "Upload one or more PDF invoices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c := client.New(serverURL)
			res, err := c.Upload(ctx, args...)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, res.Message)
			if !wait {
				return render(out, res.Invoices)
			}
			// Per-invoice poll until every upload settles or gives up.
			final := make([]model.Invoice, 0, len(res.Invoices))
			var exhausted int
			for _, inv := range res.Invoices {
				got, err := c.AwaitInvoice(ctx, inv.ID, interval, maxAttempts)
				switch {
				case errors.Is(err, client.ErrAttemptsExhausted):
					exhausted++
				case err != nil:
					return err
				}
				final = append(final, got)
			}
			if err := render(out, final); err != nil {
				return err
			}
			if exhausted > 0 {
				return fmt.Errorf("%d invoice(s) still processing after %d attempts", exhausted, maxAttempts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Poll each invoice until it is Processed or Failed")
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultItemInterval, "Poll interval with --wait")
	cmd.Flags().IntVar(&maxAttempts, "attempts", client.DefaultMaxAttempts, "Poll attempts per invoice with --wait")
	return cmd
}

// listFlags binds the query parameters shared by list and watch.
func listFlags(cmd *cobra.Command, p *query.Params) {
	cmd.Flags().IntVar(&p.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&p.Limit, "limit", 10, "Page size")
	cmd.Flags().StringVar((*string)(&p.SortBy), "sort-by", string(query.SortUploadDate), "uploadDate, amount or clientName")
	cmd.Flags().StringVar((*string)(&p.SortOrder), "order", string(query.Desc), "asc or desc")
	cmd.Flags().StringVar(&p.Status, "status", "", "Pending, Processing, Processed, Failed or all")
	cmd.Flags().StringVarP(&p.Search, "search", "q", "", "Case-insensitive match on file or client name")
}

func newListCmd() *cobra.Command {
	var params query.Params
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List invoices with filters, sorting and pagination",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			res, err := client.New(serverURL).List(cmd.Context(), params)
			if err != nil {
				return err
			}
			return renderPage(cmd.OutOrStdout(), res)
		},
	}
	listFlags(cmd, &params)
	return cmd
}

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get ID",
		Short: "Show one invoice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			inv, err := client.New(serverURL).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), []model.Invoice{inv})
		},
	}
}

func newWatchCmd() *cobra.Command {
	var (
		params   query.Params
		interval time.Duration
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Re-list until no visible invoice is Pending or Processing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			var renderErr error
			err := client.New(serverURL).WatchList(cmd.Context(), params, interval, func(res query.Result) {
				fmt.Fprintf(out, "--- %s\n", time.Now().Format(time.TimeOnly))
				if err := renderPage(out, res); err != nil && renderErr == nil {
					renderErr = err
				}
			})
			if err != nil {
				return err
			}
			return renderErr
		},
	}
	listFlags(cmd, &params)
	cmd.Flags().DurationVar(&interval, "interval", client.DefaultListInterval, "Poll interval")
	return cmd
}

func renderPage(w io.Writer, res query.Result) error {
	if asJSON {
		return writeJSON(w, res)
	}
	if err := render(w, res.Data); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d, %d of %d invoice(s)\n", res.Page, len(res.Data), res.Total)
	return err
}

func render(w io.Writer, items []model.Invoice) error {
	if asJSON {
		return writeJSON(w, items)
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tFILE\tCLIENT\tAMOUNT\tSTATUS\tUPLOADED")
	for _, inv := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			inv.ID,
			inv.FileName,
			inv.ClientName,
			formatCents(inv.Amount),
			inv.Status,
			inv.UploadDate.Local().Format(time.DateTime),
		)
	}
	return tw.Flush()
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatCents(c int64) string {
	sign := ""
	if c < 0 {
		sign, c = "-", -c
	}
	return fmt.Sprintf("%s$%d.%02d", sign, c/100, c%100)
}


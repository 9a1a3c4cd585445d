package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/ariefcatur/go-pos-terminal/internal/config"
	"github.com/ariefcatur/go-pos-terminal/internal/pos"
	"github.com/ariefcatur/go-pos-terminal/internal/receipt"
	"github.com/ariefcatur/go-pos-terminal/internal/report"
	"github.com/ariefcatur/go-pos-terminal/internal/seed"
	"github.com/spf13/cobra"
)

type filterFlags struct {
	window   string
	from     string
	to       string
	category string
	item     string
}

func (f *filterFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.window, "window", "all", "all, today, yesterday, week, month, year or range")
	cmd.Flags().StringVar(&f.from, "from", "", "Range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.to, "to", "", "Range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&f.category, "category", report.AllFacet, "Only sales with a line in this category")
	cmd.Flags().StringVar(&f.item, "item", report.AllFacet, "Only sales with a line for this item name")
}

func (f *filterFlags) filter(loc *time.Location) (report.Filter, error) {
	w, err := report.ParseWindow(f.window)
	if err != nil {
		return report.Filter{}, err
	}
	out := report.Filter{Window: w, Category: f.category, Item: f.item, Location: loc}
	if out.From, err = report.ParseDate(f.from, loc); err != nil {
		return report.Filter{}, err
	}
	if out.To, err = report.ParseDate(f.to, loc); err != nil {
		return report.Filter{}, err
	}
	return out, nil
}

func reportCmd(cfg *config.Config) *cobra.Command {
	var (
		ff  filterFlags
		top int
	)
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print revenue, transaction count and bestsellers",
		RunE: func(cmd *cobra.Command, args []string) error {
			sales, loc, err := loadSales(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			f, err := ff.filter(loc)
			if err != nil {
				return err
			}
			sum := report.Summarize(report.Apply(sales, f, time.Now()), top)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Revenue:      %s\n", sum.Revenue.Format())
			fmt.Fprintf(out, "Transactions: %d\n", sum.Transactions)
			if len(sum.Bestsellers) == 0 {
				return nil
			}
			fmt.Fprintln(out, "Bestsellers:")
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for i, b := range sum.Bestsellers {
				fmt.Fprintf(tw, "  %d.\t%s\t%d\n", i+1, b.Name, b.Quantity)
			}
			return tw.Flush()
		},
	}
	ff.bind(cmd)
	cmd.Flags().IntVar(&top, "top", report.DefaultTopN, "Number of bestsellers to list")
	return cmd
}

func salesCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sales",
		Short: "Inspect the sales history",
	}

	var ff filterFlags
	list := &cobra.Command{
		Use:   "list",
		Short: "List sales grouped by day, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			sales, loc, err := loadSales(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			f, err := ff.filter(loc)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			for _, day := range report.GroupByDay(report.Apply(sales, f, time.Now()), loc) {
				fmt.Fprintf(tw, "%s\n", day.Key())
				for _, s := range day.Sales {
					fmt.Fprintf(tw, "  %s\t%s\t%d lines\t%s\n",
						s.ID, s.Timestamp.In(loc).Format("15:04"), len(s.Lines), s.Total.Format())
				}
			}
			return tw.Flush()
		},
	}
	ff.bind(list)
	cmd.AddCommand(list)
	return cmd
}

func receiptCmd(cfg *config.Config) *cobra.Command {
	var width int
	cmd := &cobra.Command{
		Use:   "receipt <sale-id>",
		Short: "Render the receipt of a past sale",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sales, loc, err := loadSales(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			data, err := seed.Load(cfg.SeedFile)
			if err != nil {
				return err
			}
			for _, s := range sales {
				if s.ID == args[0] {
					return receipt.Render(cmd.OutOrStdout(), receipt.NewView(s, data.Profile),
						receipt.WithLocation(loc), receipt.WithWidth(width))
				}
			}
			return fmt.Errorf("%w: %s", pos.ErrSaleNotFound, args[0])
		},
	}
	cmd.Flags().IntVar(&width, "width", receipt.DefaultWidth, "Paper width in columns")
	return cmd
}

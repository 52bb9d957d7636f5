package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"memberbook/backend/internal/domain"
)

func newSlotsCmd() *cobra.Command {
	var (
		templatePath string
		from         string
		to           string
	)

	c := &cobra.Command{
		Use:   "slots",
		Short: "Print the slots a template file generates, without bookings applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := os.ReadFile(templatePath)
			if err != nil {
				return err
			}
			var tpl domain.AvailabilityTemplate
			if err := json.Unmarshal(raw, &tpl); err != nil {
				return fmt.Errorf("parse %s: %w", templatePath, err)
			}
			if tpl.ProviderID == "" {
				tpl.ProviderID = "template-file"
			}
			if err := tpl.Validate(); err != nil {
				return err
			}

			start, err := domain.ParseDate(from)
			if err != nil {
				return fmt.Errorf("--from: %w", err)
			}
			end, err := domain.ParseDate(to)
			if err != nil {
				return fmt.Errorf("--to: %w", err)
			}

			slots, err := domain.GenerateSlots(tpl, domain.QueryWindow{ProviderID: tpl.ProviderID, RangeStart: start, RangeEnd: end})
			if err != nil {
				return err
			}
			loc, err := tpl.Location()
			if err != nil {
				return err
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "START (UTC)\tEND (UTC)\tLOCAL")
			n := 0
			for slot := range slots {
				fmt.Fprintf(w, "%s\t%s\t%s\n",
					slot.Start.Format(time.RFC3339),
					slot.End.Format(time.RFC3339),
					slot.Start.In(loc).Format("Mon 2006-01-02 15:04"),
				)
				n++
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d slots\n", n)
			return nil
		},
	}

	c.Flags().StringVar(&templatePath, "template", "", "availability template JSON file")
	c.Flags().StringVar(&from, "from", "", "first date, YYYY-MM-DD")
	c.Flags().StringVar(&to, "to", "", "end date (exclusive), YYYY-MM-DD")
	_ = c.MarkFlagRequired("template")
	_ = c.MarkFlagRequired("from")
	_ = c.MarkFlagRequired("to")

	return c
}

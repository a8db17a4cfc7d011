package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the forms in the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cat, err := a.openCatalog()
			if err != nil {
				return err
			}
			defer cat.Close()

			records, err := cat.ListForms(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSUBMISSIONS\tVIEWS\tMODIFIED")
			for _, record := range records {
				modified := "-"
				if !record.LastModified.IsZero() {
					modified = record.LastModified.Format("2006-01-02")
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					record.ID, record.Name, record.Status, record.Submissions, record.Views, modified)
			}
			return w.Flush()
		},
	}
}

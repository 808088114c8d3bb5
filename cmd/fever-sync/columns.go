package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sternrassler/fever-order-sync/pkg/flatten"
)

func newColumnsCmd() *cobra.Command {
	var asJSON bool

	c := &cobra.Command{
		Use:   "columns",
		Short: "Print the output columns in order",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				return enc.Encode(flatten.Columns)
			}
			for _, col := range flatten.Columns {
				if _, err := fmt.Fprintln(out, col); err != nil {
					return err
				}
			}
			return nil
		},
	}
	c.Flags().BoolVar(&asJSON, "json", false, "print the columns as a JSON array")
	return c
}

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show this month's usage of metered sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		env, err := initEnv(ctx)
		if err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			env.Close(closeCtx)
		}()

		snap, err := env.Tracker.Snapshot(ctx)
		if err != nil {
			return err
		}

		tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SOURCE\tPERIOD\tUSED\tLIMIT\tREMAINING")
		for _, u := range snap {
			fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\n", u.Source, u.Period, u.Used, u.Limit, u.Remaining)
		}
		return tw.Flush()
	},
}

func init() {
	rootCmd.AddCommand(quotaCmd)
}

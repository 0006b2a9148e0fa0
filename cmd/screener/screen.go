package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"RiseScreener/internal/server"
	"RiseScreener/internal/strategy"
)

func screenCmd() *cobra.Command {
	var (
		bucket string
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Run one screening pass and print the rows as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, cfgPath)
			if err != nil {
				return err
			}
			defer a.Close()
			// one-off runs print instead of pushing to chat
			a.sched.Notifier = nil

			policy := a.sched.Policy
			b, err := server.ParseBucket(bucket, policy.MaxBucket)
			if err != nil && !all {
				return fmt.Errorf("%w: %w", strategy.ErrUnknownBucket, err)
			}

			res, err := a.sched.RunNow(ctx)
			if err != nil {
				return err
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if all {
				out := make(map[string][]server.RowView, len(res.Buckets))
				for n, br := range res.Buckets {
					out[strconv.Itoa(n)] = server.NewRowViews(br.Rows)
				}
				return enc.Encode(out)
			}
			return enc.Encode(server.NewRowViews(res.Buckets[b].Rows))
		},
	}
	cmd.Flags().StringVarP(&bucket, "bucket", "b", "0", "Bucket to print: 0-5, today or yesterday")
	cmd.Flags().BoolVar(&all, "all", false, "Print every bucket keyed by offset")
	return cmd
}

package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/amaumene/unmonitarr/internal/controllers"
	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
)

func newSyncCommand() *cobra.Command {
	return &cobra.Command{
		Use:       "sync [all|movies|series]",
		Short:     "Run a bulk sync of the whole library and wait for it",
		Args:      cobra.MaximumNArgs(1),
		ValidArgs: []string{controllers.BulkSyncAll, controllers.BulkSyncMovies, controllers.BulkSyncSeries},
		RunE: func(cmd *cobra.Command, args []string) error {
			kind := controllers.BulkSyncAll
			if len(args) == 1 {
				kind = args[0]
			}

			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			status, err := a.bulk.Run(ctx, kind)
			if err != nil {
				return err
			}
			return printJSON(cmd, status)
		},
	}
}

func newRetryCommand() *cobra.Command {
	var hoursBack, limit int

	cmd := &cobra.Command{
		Use:   "retry",
		Short: "Retry recent failed syncs",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			result, err := a.retry.RetryFailed(ctx, hoursBack, limit)
			if err != nil {
				return err
			}
			return printJSON(cmd, result)
		},
	}

	cmd.Flags().IntVar(&hoursBack, "hours-back", 24, "Only retry failures newer than this many hours")
	cmd.Flags().IntVar(&limit, "limit", 10, "Maximum number of failures to retry")
	return cmd
}

func newTokenCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the webhook token",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the current webhook token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokens(func(tokens *controllers.TokenManager) error {
				fmt.Fprintln(cmd.OutOrStdout(), tokens.Token())
				return nil
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "rotate",
		Short: "Generate and store a new webhook token",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withTokens(func(tokens *controllers.TokenManager) error {
				token, err := tokens.Rotate()
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), token)
				return nil
			})
		},
	})

	return cmd
}

func withTokens(fn func(tokens *controllers.TokenManager) error) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a.tokens)
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}

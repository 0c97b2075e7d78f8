package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/report"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show vault, curve and (with --as) holder balances",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, s *session, _ []string) error {
		holder := types.ZeroAddress
		if callerFlag != "" {
			h, err := caller()
			if err != nil {
				return err
			}
			holder = h
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Status(s.svc.Status(holder)))
		return nil
	}),
}

var listenFlag string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve Prometheus metrics for the persisted state",
	Args:  cobra.NoArgs,
	RunE: withSession(func(cmd *cobra.Command, s *session, _ []string) error {
		listen := listenFlag
		if listen == "" {
			listen = s.svc.Config().Metrics.Listen
		}
		s.log.Info("Starting metrics endpoint", zap.String("listen", listen))
		return s.svc.Serve(cmd.Context(), listen)
	}),
}

func init() {
	serveCmd.Flags().StringVar(&listenFlag, "listen", "", "Listen address (defaults to metrics.listen)")
}

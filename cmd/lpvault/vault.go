package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/report"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

var receiverFlag string

var depositCmd = &cobra.Command{
	Use:   "deposit <amount>",
	Short: "Deposit stablecoin into the vault for shares",
	Long: `Deposit pulls the amount from the caller (approve the vault first)
and mints shares to the receiver, which defaults to the caller.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		receiver, err := receiverOr(from)
		if err != nil {
			return err
		}
		assets, err := fixedpoint.Parse(args[0], false)
		if err != nil {
			return err
		}
		shares, err := s.svc.Deposit(cmd.Context(), from, assets, receiver)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, report.Line("deposited", fixedpoint.Format(assets)+" "+s.svc.Stable().Symbol()))
		fmt.Fprintln(out, report.Line("shares minted", fixedpoint.Format(shares)))
		return nil
	}),
}

var redeemCmd = &cobra.Command{
	Use:   "redeem <shares>",
	Short: "Burn vault shares for their stablecoin value",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		receiver, err := receiverOr(from)
		if err != nil {
			return err
		}
		shares, err := fixedpoint.Parse(args[0], false)
		if err != nil {
			return err
		}
		assets, err := s.svc.Redeem(cmd.Context(), from, shares, receiver)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, report.Line("shares burned", fixedpoint.Format(shares)))
		fmt.Fprintln(out, report.Line("paid out", fixedpoint.Format(assets)+" "+s.svc.Stable().Symbol()))
		return nil
	}),
}

var deployCmd = &cobra.Command{
	Use:   "deploy <amount>",
	Short: "Move pool liquidity to the operator (operator only)",
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		amount, err := fixedpoint.Parse(args[0], false)
		if err != nil {
			return err
		}
		if err := s.svc.DeployFunds(cmd.Context(), from, amount); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Line("managed assets", fixedpoint.Format(s.svc.Vault().ManagedAssets())))
		return nil
	}),
}

var returnCmd = &cobra.Command{
	Use:   "return <amount>",
	Short: "Return managed funds to the pool (operator only)",
	Long:  `Return pulls the amount from the operator, who must approve the vault first.`,
	Args:  cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		amount, err := fixedpoint.Parse(args[0], false)
		if err != nil {
			return err
		}
		if err := s.svc.ReturnFunds(cmd.Context(), from, amount); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), report.Line("managed assets", fixedpoint.Format(s.svc.Vault().ManagedAssets())))
		return nil
	}),
}

var reportPnLCmd = &cobra.Command{
	Use:   "report-pnl <delta>",
	Short: "Adjust managed assets by a signed profit or loss (operator only)",
	Example: `  lpvault report-pnl --as operator 125.5
  lpvault report-pnl --as operator -- -40`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		delta, err := fixedpoint.Parse(args[0], true)
		if err != nil {
			return err
		}
		if err := s.svc.ReportPnL(cmd.Context(), from, delta); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		symbol := s.svc.Stable().Symbol()
		fmt.Fprintln(out, report.Line("reported", report.Signed(delta, symbol)))
		fmt.Fprintln(out, report.Line("share price", fixedpoint.Format(s.svc.Vault().SharePrice())+" "+symbol))
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{depositCmd, redeemCmd} {
		c.Flags().StringVar(&receiverFlag, "to", "", "Receiver account (defaults to the caller)")
	}
}

func receiverOr(fallback types.Address) (types.Address, error) {
	if receiverFlag == "" {
		return fallback, nil
	}
	return types.ParseAddress(receiverFlag)
}

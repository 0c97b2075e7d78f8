package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

var fundCmd = &cobra.Command{
	Use:   "fund <account> <amount>",
	Short: "Issue stablecoin to an account (issuer only)",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		to, err := types.ParseAddress(args[0])
		if err != nil {
			return err
		}
		amount, err := fixedpoint.Parse(args[1], false)
		if err != nil {
			return err
		}
		if err := s.svc.Fund(cmd.Context(), from, to, amount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "issued %s %s to %s\n", fixedpoint.Format(amount), s.svc.Stable().Symbol(), to)
		return nil
	}),
}

var approveCmd = &cobra.Command{
	Use:   "approve <vault|curve|account> <amount>",
	Short: "Allow a spender to pull stablecoin from the caller",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		owner, err := caller()
		if err != nil {
			return err
		}
		spender, err := s.svc.Spender(args[0])
		if err != nil {
			return err
		}
		amount, err := fixedpoint.Parse(args[1], false)
		if err != nil {
			return err
		}
		if err := s.svc.Approve(cmd.Context(), owner, spender, amount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s may pull %s %s from %s\n", spender, fixedpoint.Format(amount), s.svc.Stable().Symbol(), owner)
		return nil
	}),
}

var transferCmd = &cobra.Command{
	Use:   "transfer <account> <amount>",
	Short: "Send stablecoin to another account",
	Args:  cobra.ExactArgs(2),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		to, err := s.svc.Spender(args[0])
		if err != nil {
			return err
		}
		amount, err := fixedpoint.Parse(args[1], false)
		if err != nil {
			return err
		}
		if err := s.svc.Transfer(cmd.Context(), from, to, amount); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "sent %s %s to %s\n", fixedpoint.Format(amount), s.svc.Stable().Symbol(), to)
		return nil
	}),
}

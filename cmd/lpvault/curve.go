package main

import (
	"fmt"

	"cosmossdk.io/math"
	"github.com/spf13/cobra"

	"github.com/rovshanmuradov/lpvault/internal/fixedpoint"
	"github.com/rovshanmuradov/lpvault/internal/report"
)

var minOutFlag string

var buyCmd = &cobra.Command{
	Use:   "buy <stable-in>",
	Short: "Spend up to stable-in on curve tokens",
	Long: `Buy mints as many curve tokens as stable-in covers at the current price
and pulls only their exact cost. Approve the curve first.`,
	Args: cobra.ExactArgs(1),
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		from, err := caller()
		if err != nil {
			return err
		}
		stableIn, err := fixedpoint.Parse(args[0], false)
		if err != nil {
			return err
		}
		minOut, err := minOut()
		if err != nil {
			return err
		}
		res, err := s.svc.Buy(cmd.Context(), from, stableIn, minOut)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		m := s.svc.Market()
		fmt.Fprintln(out, report.Line("tokens bought", fixedpoint.Format(res.Tokens)+" "+m.Tokens().Symbol()))
		fmt.Fprintln(out, report.Line("cost", fixedpoint.Format(res.Cost)+" "+s.svc.Stable().Symbol()))
		fmt.Fprintln(out, report.Line("price now", fixedpoint.Format(m.GetPrice())))
		return nil
	}),
}

var sellCmd = &cobra.Command{
	Use:   "sell <tokens>",
	Short: "Sell curve tokens back to the reserve",
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
		minOut, err := minOut()
		if err != nil {
			return err
		}
		res, err := s.svc.Sell(cmd.Context(), from, amount, minOut)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintln(out, report.Line("tokens sold", fixedpoint.Format(res.Tokens)))
		fmt.Fprintln(out, report.Line("proceeds", fixedpoint.Format(res.Proceeds)+" "+s.svc.Stable().Symbol()))
		fmt.Fprintln(out, report.Line("price now", fixedpoint.Format(s.svc.Market().GetPrice())))
		return nil
	}),
}

var quoteCmd = &cobra.Command{
	Use:   "quote <buy|sell|cost> <amount>",
	Short: "Price a trade against the current curve state",
	Long: `quote buy <stable-in>   tokens and cost a buy would produce
quote cost <tokens>     stablecoin needed to buy exactly that many tokens
quote sell <tokens>     stablecoin a sell would pay`,
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"buy", "sell", "cost"},
	RunE: withSession(func(cmd *cobra.Command, s *session, args []string) error {
		amount, err := fixedpoint.Parse(args[1], false)
		if err != nil {
			return err
		}
		m := s.svc.Market()
		stable := s.svc.Stable().Symbol()
		out := cmd.OutOrStdout()
		switch args[0] {
		case "buy":
			q, err := m.QuoteBuy(amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.Line("tokens", fixedpoint.Format(q.Tokens)))
			fmt.Fprintln(out, report.Line("cost", fixedpoint.Format(q.Cost)+" "+stable))
		case "cost":
			cost, err := m.GetBuyCost(amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.Line("cost", fixedpoint.Format(cost)+" "+stable))
		case "sell":
			proceeds, err := m.GetSellReturn(amount)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.Line("proceeds", fixedpoint.Format(proceeds)+" "+stable))
		default:
			return fmt.Errorf("unknown quote kind %q", args[0])
		}
		return nil
	}),
}

func init() {
	for _, c := range []*cobra.Command{buyCmd, sellCmd} {
		c.Flags().StringVar(&minOutFlag, "min-out", "0", "Reject the trade if it yields less than this")
	}
}

func minOut() (math.Int, error) {
	v, err := fixedpoint.Parse(minOutFlag, false)
	if err != nil {
		return math.Int{}, fmt.Errorf("--min-out: %w", err)
	}
	return v, nil
}

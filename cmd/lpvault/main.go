// ====================================
// File: cmd/lpvault/main.go
// ====================================
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/lpvault/internal/app"
	"github.com/rovshanmuradov/lpvault/internal/config"
	"github.com/rovshanmuradov/lpvault/internal/logger"
	"github.com/rovshanmuradov/lpvault/internal/types"
)

var (
	configPath string
	callerFlag string
	debug      bool
)

var rootCmd = &cobra.Command{
	Use:           "lpvault",
	Short:         "Share vault and bonding curve accounting engines",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/config.yaml", "Path to the configuration file")
	rootCmd.PersistentFlags().StringVar(&callerFlag, "as", "", "Account executing the command")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")

	rootCmd.AddCommand(fundCmd, approveCmd, transferCmd)
	rootCmd.AddCommand(depositCmd, redeemCmd, deployCmd, returnCmd, reportPnLCmd)
	rootCmd.AddCommand(buyCmd, sellCmd, quoteCmd)
	rootCmd.AddCommand(statusCmd, serveCmd, runCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// session is one opened service plus its logger.
type session struct {
	svc *app.Service
	log *logger.Logger
}

func openSession() (*session, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if debug {
		cfg.Log.Development = true
	}
	log, err := logger.New(&cfg.Log)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	svc, err := app.Open(cfg, log)
	if err != nil {
		_ = log.Sync()
		return nil, err
	}
	return &session{svc: svc, log: log}, nil
}

func (s *session) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := s.svc.Close(ctx); err != nil {
		s.log.Warn("Event bus did not drain", zap.Error(err))
	}
	_ = s.log.Sync()
}

// withSession opens the service for the duration of fn.
func withSession(fn func(cmd *cobra.Command, s *session, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		s, err := openSession()
		if err != nil {
			return err
		}
		defer s.close()
		return fn(cmd, s, args)
	}
}

func caller() (types.Address, error) {
	addr, err := types.ParseAddress(callerFlag)
	if err != nil {
		return types.ZeroAddress, fmt.Errorf("--as: %w", err)
	}
	return addr, nil
}

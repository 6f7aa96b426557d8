package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sparkcampus/doubts/backend/internal/ledger"
)

func newLedgerCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the credit journal",
	}
	cmd.AddCommand(newLedgerAuditCommand(opts))
	return cmd
}

func newLedgerAuditCommand(opts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "audit",
		Short: "List users whose balance differs from their journal",
		Long: `List every user whose stored credit balance is not the sum of their
ledger entries. Exits 1 when any are found.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.setup()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			db, err := opts.openDatabase(cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			found, err := ledger.NewService(db.DB(), logger).Audit(cmd.Context())
			if err != nil {
				return wrapExit(ExitCommandError, "audit", err)
			}

			out := cmd.OutOrStdout()
			if len(found) == 0 {
				fmt.Fprintln(out, "ledger is consistent")
				return nil
			}
			for _, d := range found {
				fmt.Fprintf(out, "user %d <%s>: credits=%d ledger=%d\n", d.UserID, d.Email, d.Credits, d.LedgerTotal)
			}
			return &ExitError{Code: ExitFailure, Message: fmt.Sprintf("%d balance(s) disagree with the ledger", len(found))}
		},
	}
}

// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-certslot.
//
// go-certslot is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/jeremyhahn/go-certslot/internal/config"
	"github.com/spf13/cobra"
)

// issueCmd runs the configured issuance
var issueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Create the authority and issue the configured certificates",
	Long: `Create the authority described in the configuration file and issue
every configured certificate against it. Subject keys are generated in
their key slot; certificates are signed in the authority slot and
delivered to the deliver_to slot when one is set.

The command exits non-zero when any certificate fails.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := getConfig().Load()
		if err != nil {
			handleError(err)
		}
		printVerbose("Loaded %d slots and %d certificates from %s",
			len(cfg.Slots), len(cfg.Certificates), getConfig().ConfigFile)

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := runIssue(ctx, cfg, getConfig().OutputFormat, cmd.OutOrStdout(), os.Stderr); err != nil {
			handleError(err)
		}
	},
}

func runIssue(ctx context.Context, cfg *config.Config, format string, out, logOut io.Writer) error {
	engine, log, err := OpenEngine(cfg, logOut)
	if err != nil {
		return err
	}
	defer func() { log.MaybeError(engine.Close()) }()

	report, err := engine.Run(ctx)
	if err != nil {
		return err
	}
	if err := NewPrinter(format, out).PrintReport(report); err != nil {
		return err
	}
	if n := report.Result.Failed(); n > 0 {
		return fmt.Errorf("%d of %d certificates failed: %w",
			n, len(report.Result.Outcomes), report.Result.Err())
	}
	return nil
}

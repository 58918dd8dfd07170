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
	"io"

	"github.com/jeremyhahn/go-certslot/internal/config"
	"github.com/jeremyhahn/go-certslot/pkg/health"
	"github.com/spf13/cobra"
)

// slotsCmd lists the configured slots
var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "List configured slots, their capabilities and health",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := getConfig().Load()
		if err != nil {
			handleError(err)
		}
		if err := runSlots(cmd.Context(), cfg, getConfig().OutputFormat, cmd.OutOrStdout(), cmd.ErrOrStderr()); err != nil {
			handleError(err)
		}
	},
}

func runSlots(ctx context.Context, cfg *config.Config, format string, out, logOut io.Writer) error {
	engine, log, err := OpenEngine(cfg, logOut)
	if err != nil {
		return err
	}
	defer func() { log.MaybeError(engine.Close()) }()

	checker := health.NewChecker()
	slots := engine.Slots()
	infos := make([]SlotInfo, 0, len(slots))
	for _, s := range slots {
		checker.RegisterProber(s)
		result, _ := checker.Check(ctx, s.ID())
		certs, err := engine.CertStore().ListCertificates(s.ID())
		if err != nil {
			return err
		}
		infos = append(infos, SlotInfo{
			ID:           s.ID(),
			Type:         s.Type().String(),
			Timeout:      s.Timeout().String(),
			Capabilities: s.Capabilities(),
			Certificates: len(certs),
			Health:       result,
		})
	}
	return NewPrinter(format, out).PrintSlots(infos)
}

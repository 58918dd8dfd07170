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
	"fmt"
	"io"
	"os"

	"github.com/jeremyhahn/go-certslot/pkg/encoding"
	"github.com/spf13/cobra"
)

// inspectCmd prints a certificate file
var inspectCmd = &cobra.Command{
	Use:   "inspect <file>",
	Short: "Print a DER or PEM encoded certificate",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runInspect(args[0], getConfig().OutputFormat, cmd.OutOrStdout()); err != nil {
			handleError(err)
		}
	},
}

func runInspect(path, format string, out io.Writer) error {
	// #nosec G304 - path is provided by the user
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read certificate: %w", err)
	}
	cert, err := encoding.DecodeCertificate(data)
	if err != nil {
		return err
	}
	return NewPrinter(format, out).PrintCertificate(cert)
}

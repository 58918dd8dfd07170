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
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jeremyhahn/go-certslot/pkg/backend"
	"github.com/jeremyhahn/go-certslot/pkg/certstore"
	"github.com/jeremyhahn/go-certslot/pkg/health"
	"github.com/jeremyhahn/go-certslot/pkg/issuance"
	"github.com/jeremyhahn/go-certslot/pkg/storage"
)

// OutputFormat defines the output format type
type OutputFormat string

const (
	OutputFormatText  OutputFormat = "text"
	OutputFormatJSON  OutputFormat = "json"
	OutputFormatTable OutputFormat = "table"
)

// SlotInfo describes an open slot for display.
type SlotInfo struct {
	ID           string               `json:"id"`
	Type         string               `json:"type"`
	Timeout      string               `json:"timeout"`
	Capabilities backend.Capabilities `json:"capabilities"`
	Certificates int                  `json:"certificates"`
	Health       health.CheckResult   `json:"health"`
}

// Printer handles formatted output
type Printer struct {
	format OutputFormat
	writer io.Writer
}

// NewPrinter creates a new Printer
func NewPrinter(format string, writer io.Writer) *Printer {
	return &Printer{
		format: OutputFormat(format),
		writer: writer,
	}
}

// PrintSuccess prints a success message
func (p *Printer) PrintSuccess(message string) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status":  "success",
			"message": message,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintln(p.writer, message)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintError prints an error message
func (p *Printer) PrintError(err error) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"status": "error",
			"error":  err.Error(),
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Error: %v\n", err)
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCertificate prints certificate details followed by the PEM block
func (p *Printer) PrintCertificate(cert *x509.Certificate) error {
	info := certstore.Info("", cert)
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(info)
	case OutputFormatTable, OutputFormatText:
		p.printInfo(info)
		fmt.Fprint(p.writer, string(pem.EncodeToMemory(&pem.Block{
			Type:  "CERTIFICATE",
			Bytes: cert.Raw,
		})))
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintCertList prints certificates as a table
func (p *Printer) PrintCertList(certs []*certstore.CertificateInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"certificates": certs,
		})
	case OutputFormatTable, OutputFormatText:
		if len(certs) == 0 {
			fmt.Fprintln(p.writer, "No certificates found")
			return nil
		}
		fmt.Fprintf(p.writer, "%-12s %-20s %-30s %-20s\n", "SLOT", "SERIAL", "SUBJECT", "NOT AFTER")
		fmt.Fprintln(p.writer, strings.Repeat("-", 85))
		for _, c := range certs {
			fmt.Fprintf(p.writer, "%-12s %-20s %-30s %-20s\n",
				c.Slot, c.Serial, c.Subject, c.NotAfter.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintSlots prints the configured slots and their capabilities
func (p *Printer) PrintSlots(slots []SlotInfo) error {
	switch p.format {
	case OutputFormatJSON:
		return p.printJSON(map[string]interface{}{
			"slots": slots,
		})
	case OutputFormatTable, OutputFormatText:
		for _, s := range slots {
			fmt.Fprintf(p.writer, "Slot: %s\n", s.ID)
			fmt.Fprintf(p.writer, "  Type:                %s\n", s.Type)
			fmt.Fprintf(p.writer, "  Timeout:             %s\n", s.Timeout)
			fmt.Fprintf(p.writer, "  Hardware Backed:     %t\n", s.Capabilities.HardwareBacked)
			fmt.Fprintf(p.writer, "  Key Persistence:     %t\n", s.Capabilities.KeyPersistence)
			fmt.Fprintf(p.writer, "  Certificate Storage: %t\n", s.Capabilities.CertificateStorage)
			fmt.Fprintf(p.writer, "  Public Key Import:   %t\n", s.Capabilities.PublicKeyImport)
			fmt.Fprintf(p.writer, "  Certificates:        %d\n", s.Certificates)
			fmt.Fprintf(p.writer, "  Health:              %s (%s)\n", s.Health.Status, s.Health.Latency.Round(time.Microsecond))
			if s.Health.Error != "" {
				fmt.Fprintf(p.writer, "  Health Error:        %s\n", s.Health.Error)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

// PrintReport prints the outcome of an issuance run
func (p *Printer) PrintReport(report *Report) error {
	switch p.format {
	case OutputFormatJSON:
		outcomes := make([]map[string]interface{}, 0, len(report.Result.Outcomes))
		for _, o := range report.Result.Outcomes {
			outcomes = append(outcomes, outcomeJSON(o))
		}
		return p.printJSON(map[string]interface{}{
			"batch_id":  report.Result.BatchID,
			"authority": report.Authority,
			"succeeded": report.Result.Succeeded(),
			"failed":    report.Result.Failed(),
			"outcomes":  outcomes,
		})
	case OutputFormatTable, OutputFormatText:
		fmt.Fprintf(p.writer, "Batch: %s\n", report.Result.BatchID)
		fmt.Fprintln(p.writer, "Authority:")
		p.printInfo(report.Authority)
		fmt.Fprintf(p.writer, "Issued %d of %d certificates\n",
			report.Result.Succeeded(), len(report.Result.Outcomes))
		for _, o := range report.Result.Outcomes {
			if o.OK() {
				fmt.Fprintf(p.writer, "  [ok]     %-16s serial=%s slot=%s label=%s\n",
					o.RequestID, storage.SerialHex(o.Serial), o.SlotID, o.Certificate.Label())
				continue
			}
			fmt.Fprintf(p.writer, "  [failed] %-16s stage=%s error=%v\n", o.RequestID, o.Stage, o.Err)
		}
		return nil
	default:
		return fmt.Errorf("unknown output format: %s", p.format)
	}
}

func outcomeJSON(o *issuance.Outcome) map[string]interface{} {
	m := map[string]interface{}{
		"request_id": o.RequestID,
		"stage":      o.Stage.String(),
	}
	if o.Serial != nil {
		m["serial"] = storage.SerialHex(o.Serial)
	}
	if o.OK() {
		m["status"] = "success"
		m["slot"] = o.SlotID
		m["label"] = o.Certificate.Label()
	} else {
		m["status"] = "error"
		m["error"] = o.Err.Error()
	}
	return m
}

func (p *Printer) printInfo(info *certstore.CertificateInfo) {
	if info.Slot != "" {
		fmt.Fprintf(p.writer, "  Slot:       %s\n", info.Slot)
	}
	fmt.Fprintf(p.writer, "  Serial:     %s\n", info.Serial)
	fmt.Fprintf(p.writer, "  Subject:    %s\n", info.Subject)
	fmt.Fprintf(p.writer, "  Issuer:     %s\n", info.Issuer)
	fmt.Fprintf(p.writer, "  Not Before: %s\n", info.NotBefore.Format(time.RFC3339))
	fmt.Fprintf(p.writer, "  Not After:  %s\n", info.NotAfter.Format(time.RFC3339))
	fmt.Fprintf(p.writer, "  Algorithm:  %s\n", info.SignatureAlgorithm)
	fmt.Fprintf(p.writer, "  Key Usage:  %s\n", strings.Join(info.KeyUsage, ", "))
	fmt.Fprintf(p.writer, "  CA:         %t\n", info.IsCA)
}

// printJSON prints data as JSON
func (p *Printer) printJSON(data interface{}) error {
	encoder := json.NewEncoder(p.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(data)
}

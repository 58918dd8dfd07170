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

package logger

import "context"

// NopLogger discards everything.
type NopLogger struct{}

// NewNopLogger returns a Logger that discards all output.
func NewNopLogger() Logger {
	return NopLogger{}
}

func (NopLogger) Debug(string, ...Field)                         {}
func (NopLogger) Info(string, ...Field)                          {}
func (NopLogger) Warn(string, ...Field)                          {}
func (NopLogger) Error(string, ...Field)                         {}
func (NopLogger) DebugContext(context.Context, string, ...Field) {}
func (NopLogger) InfoContext(context.Context, string, ...Field)  {}
func (NopLogger) WarnContext(context.Context, string, ...Field)  {}
func (NopLogger) ErrorContext(context.Context, string, ...Field) {}
func (n NopLogger) With(...Field) Logger                         { return n }
func (n NopLogger) WithError(error) Logger                       { return n }

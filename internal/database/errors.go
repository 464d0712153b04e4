// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package database

import (
	"context"

	"github.com/fieldtrace/fieldtrace/internal/logging"
)

// logError logs a non-fatal database error with the request ID from ctx.
func logError(ctx context.Context, err error, msg string) {
	logging.Ctx(ctx).Error().Err(err).Msg(msg)
}

// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

package config

import (
	"errors"
	"fmt"
)

// minJWTSecretLength is the minimum usable secret length for HS256 signing.
const minJWTSecretLength = 32

var (
	// ErrJWTSecretTooShort indicates the configured JWT secret does not
	// meet the minimum length requirement.
	ErrJWTSecretTooShort = errors.New("JWT_SECRET must be at least 32 characters")

	// ErrInvalidDutyStore indicates an unknown duty store kind.
	ErrInvalidDutyStore = errors.New("duty.store must be \"memory\" or \"badger\"")
)

// Validate checks the loaded configuration for values that would make the
// server unusable or unsafe. It is called from Load(); call it again after
// programmatic mutation in tests.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range [1,65535]", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("server.timeout must be positive, got %s", c.Server.Timeout)
	}

	if len(c.Security.JWTSecret) > 0 && len(c.Security.JWTSecret) < minJWTSecretLength {
		return ErrJWTSecretTooShort
	}
	if c.Security.BcryptCost < 4 || c.Security.BcryptCost > 31 {
		return fmt.Errorf("security.bcrypt_cost %d out of range [4,31]", c.Security.BcryptCost)
	}
	if c.Security.RateLimitReqs <= 0 {
		return fmt.Errorf("security.rate_limit_requests must be positive, got %d", c.Security.RateLimitReqs)
	}

	if c.Tracking.OnlineThreshold <= 0 {
		return fmt.Errorf("tracking.online_threshold must be positive, got %s", c.Tracking.OnlineThreshold)
	}
	if c.Tracking.FlushInterval <= 0 {
		return fmt.Errorf("tracking.flush_interval must be positive, got %s", c.Tracking.FlushInterval)
	}
	if c.Tracking.MinUpdateInterval < 0 {
		return fmt.Errorf("tracking.min_update_interval must not be negative, got %s", c.Tracking.MinUpdateInterval)
	}
	if c.Tracking.UpdateBurst < 1 {
		return fmt.Errorf("tracking.update_burst must be at least 1, got %d", c.Tracking.UpdateBurst)
	}

	switch c.Duty.Store {
	case "memory", "badger":
	default:
		return ErrInvalidDutyStore
	}
	if c.Duty.Store == "badger" && c.Duty.StorePath == "" {
		return errors.New("duty.store_path is required when duty.store is \"badger\"")
	}
	if c.Duty.MaxSessionAge <= 0 {
		return fmt.Errorf("duty.max_session_age must be positive, got %s", c.Duty.MaxSessionAge)
	}

	if c.API.DefaultPageSize < 1 || c.API.DefaultPageSize > c.API.MaxPageSize {
		return fmt.Errorf("api.default_page_size %d out of range [1,%d]", c.API.DefaultPageSize, c.API.MaxPageSize)
	}

	return nil
}

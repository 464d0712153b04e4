// Fieldtrace - Field Service Ticketing and Live Workforce Tracking
// Copyright 2026 Fieldtrace Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/fieldtrace/fieldtrace

// Package supervisor builds the suture supervision tree that keeps the
// server's long-running components alive.
//
// The tree has three child supervisors under one root: a data layer
// (presence flusher, duty reaper, history pruner), a messaging layer
// (websocket hub, optional NATS consumers), and an API layer (the HTTP
// server). Restart decisions stay within a layer, so a panicking hub
// cannot take the HTTP listener down with it.
//
// Service wrappers that adapt components to the suture.Service
// interface live in the services subpackage.
package supervisor

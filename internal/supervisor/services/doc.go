// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package services contains suture.Service wrappers for the components
// that run under the supervisor tree: the HTTP server and the storage
// cleanup sweeper. Each wrapper adapts a component's native lifecycle to
// suture's blocking Serve(ctx) contract and implements fmt.Stringer so
// supervisor events name the service.
package services

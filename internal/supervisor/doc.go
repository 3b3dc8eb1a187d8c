// Actionrank - Persona-Driven Climate Action Recommendations
// Copyright 2026 Verdant Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/verdantlabs/actionrank

// Package supervisor builds the suture v4 supervision tree that runs the
// actionrank process.
//
// The tree has a root supervisor with two child supervisors: a storage
// layer holding the badger cleanup sweeper, and an api layer holding the
// HTTP server. Service wrappers that adapt component lifecycles to
// suture's Serve(ctx) pattern live in the services subpackage.
//
// Supervisor events are logged through sutureslog, bridged onto the
// process-wide zerolog logger via logging.NewSlogLogger.
package supervisor

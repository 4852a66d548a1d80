// Package testutil provides deterministic stand-ins for the poll loop's
// collaborators: a scripted source, sequential cycle IDs, and a sink that
// records every render.
//
// Everything here implements the engine interfaces structurally and
// imports only ir, so engine's own tests can use it too.
package testutil

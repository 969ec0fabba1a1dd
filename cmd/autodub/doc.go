// Package main hosts the autodub CLI entrypoint and command graph.
//
// The Cobra-based command tree translates terminal invocations into HTTP
// calls against the daemon, one-shot dubbing runs, cache maintenance, and
// configuration scaffolding. It centralizes configuration resolution and
// provider wiring so subcommands can focus on user experience.
//
// Keep this package lean: add new functionality by extending the internal
// packages first, then surface it through dedicated commands or flags here.
package main

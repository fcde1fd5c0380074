// Package pkg provides the libraries behind the flowcore diagram engine.
//
// # Overview
//
// Flowcore keeps the authoritative state of a node/edge diagram and applies
// every change to it through one pipeline. Hosts emit commands, the engine
// turns them into sparse state updates, middlewares adjust or veto them and
// the result is committed through a model adapter.
//
// # Architecture
//
// The typical data flow of one change:
//
//	Command (e.g. moveNodesBy)
//	         ↓
//	    [command] handler (built-in callback computes a StateUpdate)
//	         ↓
//	    [transaction] (queued while a transaction is open)
//	         ↓
//	    [middleware] chain (snapping, z-index, user policies)
//	         ↓
//	    [adapter] (commit), then [lookup] and [spatial] refresh
//	         ↓
//	    [events] dispatch and [render] redraw
//
// Measured geometry flows the other way: hosts report sizes and positions
// through [updater], and [measure] tracks which entities are still pending.
//
// # Main Packages
//
// ## Engine
//
// [flowcore] - The engine. Owns the update semaphore, wires every package
// below together and exposes queries and a debug handle.
//
// [model] - State types (nodes, edges, ports, labels, viewport) and the
// sparse update format with its merge rules.
//
// [command] - Command types, the handler registry, built-in callbacks and
// the JSON envelope used by scripts and the debug API.
//
// [transaction] - Nested transactions with savepoints, rollback and
// measurement waits.
//
// [middleware] - The ordered middleware chain and the built-in policies.
//
// ## Indexes
//
// [lookup] - Id maps, group hierarchy and selection over the committed state.
//
// [spatial] - Grid-bucketed spatial hash for range and overlap queries.
//
// ## Infrastructure
//
// [config] - Engine configuration (TOML), defaults and validation.
//
// [errors] - Coded errors shared by every package.
//
// [observability] - Hook interfaces, with a Prometheus implementation.
//
// [io] - State files (JSON, TOML) and command scripts.
//
// [adapter] - Model adapters: in memory, or persisted to a state file.
//
// [debug] - HTTP inspection server over a running engine.
//
// [render] - Renderer interface and the Graphviz implementation.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...              # All tests
//	go test ./pkg/flowcore/...     # Specific package
//	go test -race ./pkg/...        # With the race detector
//
// [flowcore]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/flowcore
// [model]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/model
// [command]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/command
// [transaction]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/transaction
// [middleware]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/middleware
// [lookup]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/lookup
// [spatial]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/spatial
// [updater]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/updater
// [measure]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/measure
// [events]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/events
// [config]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/config
// [errors]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/errors
// [observability]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/observability
// [io]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/io
// [adapter]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/adapter
// [debug]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/debug
// [render]: https://pkg.go.dev/github.com/matzehuels/flowcore/pkg/render
package pkg

// Package pkg provides the core libraries for Quarry dependency resolution.
//
// # Overview
//
// Quarry resolves transitive dependency graphs from remote artifact
// repositories into a local repository cache. The pkg directory is organized
// into three main areas:
//
//  1. Model - identity and policy value types ([artifact], [version], [repo])
//  2. Engine - graph collection and conflict resolution ([collect], [resolve])
//  3. Plumbing - transfer and synchronization ([transport], [transfer],
//     [update], [trust], [locking], [session])
//
// The engine packages depend on the model and on abstract interfaces over
// the plumbing; concrete wiring happens in internal/cli.
package pkg

// Package internal contains the packages behind the lazyns CLI.
//
// The library itself lives under pkg/ and depends on nothing here except
// logging. These packages are not importable by other modules.
//
// # Package Organization
//
//   - config: Viper-backed CLI configuration with validation
//   - logging: Structured logging on log/slog with components and fields
//   - version: Build information and dependency version lookup
//   - watcher: Debounced spec file monitoring on fsnotify
//
// # Design Principles
//
// Packages keep their state behind mutexes and report failures as typed
// errors from pkg/errors. Long-running work takes a context.Context and
// stops when it is cancelled.
package internal

// Package vm runs compiled live scripts.
//
// This package contains:
//   - the script value model (Go scalars, Symbol, Array, Block)
//   - lexical frames and block closures
//   - primitive message tables per value kind
//   - Unit, the swappable compiled form of a script file
//   - RuntimeError, raised when a running unit fails
package vm

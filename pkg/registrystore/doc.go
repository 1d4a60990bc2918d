// Package registrystore implements the Registry Store: the authoritative
// per-unit CanisterRecord table and the parent-chain/children queries
// derived from it.
//
// The registry reachable from root via parent is a tree: root has no
// parent, every other record has exactly one. Parent-chain traversal is
// bounded by registry cardinality so a corrupted cycle terminates with
// ErrParentChainTooLong instead of looping forever.
package registrystore

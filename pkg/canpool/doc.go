// Package canpool implements the admissibility-gated canister pool:
// units awaiting reset or reuse, tracked through Ready, PendingReset and
// Failed status, plus the predicate that decides whether a given unit
// may be imported into it.
package canpool

/*
Package orchestrator implements the root-only Lifecycle Orchestrator of
spec.md §4.4: the Create and Upgrade workflows that provision a unit,
install its module, keep the parent-chain registry consistent, and
cascade the resulting topology/state to the new subtree.

Grounded on original_source's workflow/canister_lifecycle/mod.rs (the
Create/Upgrade step sequences and their abort-on-first-failure
semantics) and workflow/bootstrap/root.rs (root's own bootstrap as a
degenerate Create). The reserve-first, create-fresh-fallback
provisioning shape is grounded on ops/model/memory/reserve.rs. Registry
mutation followed by cascade sequencing mirrors cuemby-warren's
Manager.Bootstrap pattern of committing local state before reacting to
it.
*/
package orchestrator

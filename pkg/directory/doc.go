// Package directory implements the Directory Resolver: a pure function
// from registry entries to flat role→principal directory snapshots.
//
// Two flavors are derived: the subnet directory (this subnet, every
// installed role) and the app directory (cross-subnet, deduped union of
// subnet directories). Both carry the invariant that keys are unique by
// role within a snapshot.
package directory

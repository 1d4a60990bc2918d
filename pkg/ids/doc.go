// Package ids defines the identity primitives shared by every other canic
// package: canister principals, role names, and bounded strings.
package ids

// Package canicerr implements the layered error taxonomy of the framework:
// internal typed errors per package, converging on a small stable public
// envelope at the API boundary.
package canicerr

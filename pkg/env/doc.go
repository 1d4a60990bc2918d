// Package env holds the Environment: the per-unit identity tuple imported
// at init and consulted for the lifetime of the process.
package env

// Package reserve implements the root-owned pre-provisioned reserve: a
// map from principal to the metadata recorded when it was set aside,
// queried oldest-first so refills always drain in creation order.
package reserve

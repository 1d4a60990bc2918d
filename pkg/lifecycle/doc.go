// Package lifecycle implements the Shard Lifecycle State Machine: the
// phase index for each shard (Created, Provisioned, Active, Retiring,
// Revoked) and the derived active/rotation-target sets.
//
// Admin commands never mutate the sharding registry itself — only phase
// and set membership. Every transition is idempotent in its target state;
// any other transition fails with ErrInvalidTransition.
package lifecycle

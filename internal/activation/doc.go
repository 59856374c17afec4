// Package activation owns the loopback control channel between instances.
//
// Ownership boundary:
// - the primary's accept loop and its cooperative shutdown
// - the one-word wire protocol ("activate" -> "ok")
// - the duplicate-launch client side of that exchange
//
// Activation does not decide who the primary is; that belongs to applock.
package activation

// Package bot assembles the engine and runs the event reconciliation loop.
//
// The App owns component lifecycles; the Reconciler is the single consumer
// of transport events and the only writer of the presence set.
package bot

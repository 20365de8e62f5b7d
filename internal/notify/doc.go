// Package notify implements the one-shot scheduled notification queues
// (alarms and timers) and the background fire loops that deliver them.
//
// Alarms fire at an absolute wall-clock time and survive restarts through
// the snapshot store. Timers fire after a relative duration and are lost on
// restart. Both queues are scanned on a fixed poll cadence; the due-check
// and the removal share one critical section, so a notification fires at
// most once even when poll cycles overlap.
package notify

// Package events is the event broadcaster: a semantic, typed wrapper over a
// fan-out channel that lets REST/WS subscribers observe job and drive
// activity without polling the store.
//
// Each domain occurrence gets its own Broadcast* method rather than a single
// generic Publish(name, payload) call, so the set of events a subscriber can
// receive is discoverable from the package API instead of from string
// literals scattered across callers.
package events

// Package drivemonitor detects optical disc insertion and removal per
// drive: it establishes a present/empty baseline at startup,
// polls each drive on a ticker, and emits an ordered Event on every
// present/empty transition. A udev netlink listener nudges the next poll
// early when it's available, but the poll loop is the source of truth.
package drivemonitor

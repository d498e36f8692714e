// Package services implements the driving ports: the ingest coordinator
// that owns the canonical write path, and the folder watcher that drives it
// from an inbox directory.
package services

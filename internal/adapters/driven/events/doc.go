// Package events provides the event sink adapters: stdout, webhook and
// redis, plus a fan-out emitter that delivers to several sinks at once.
// Delivery is best-effort everywhere; a sink failure never reaches the
// pipeline that produced the event.
package events

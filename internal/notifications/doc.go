// Package notifications creates persisted notification records for detected
// events and provides the delivery channel the relay pushes them through.
package notifications

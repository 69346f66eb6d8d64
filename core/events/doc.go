// Package events defines the allocation related events emitted on the event bus.
//
// Available event types:
//   - AllocationEvent: a wrench request was allocated to thrusters
//   - DerateEvent: a solve failed and the wrench was scaled down
//   - LayoutEvent: the set of dropped thrusters changed
//   - ThrusterStatusEvent: a thruster health transition was observed
package events

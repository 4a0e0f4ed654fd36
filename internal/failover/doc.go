// Package failover implements the dual-uplink monitoring state machine:
// debounced per-uplink failure counting, ownership of the failover default
// route on the secondary uplink, and the polling loop that ties probing,
// counting and route switching together.
package failover

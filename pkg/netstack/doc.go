// Package netstack is the boundary to the Wi-Fi and IP stack.
//
// The stack is an external collaborator. It accepts a handful of commands
// through the Radio interface (init, start, connect, create an IPv6
// link-local address, stop, deinit) and reports progress asynchronously as
// four lifecycle events:
//
//   - StationDisconnected: association with the access point was lost
//   - StationConnected: the station associated with the access point
//   - GotIPv4: an IPv4 address was assigned to the station interface
//   - GotIPv6LinkLocal: an IPv6 link-local address became usable
//
// Events are delivered by a Dispatcher on its own goroutine, the equivalent
// of the stack's event task. Handlers registered with a Dispatcher never run
// after Unregister has returned, so the owner of a handler may release the
// state it references right after unregistering.
//
// Two radios are provided. SimRadio is a scriptable in-process radio used by
// tests and by the device command in simulation mode. HostRadio follows a
// real operating system interface and reports its link and address changes.
package netstack

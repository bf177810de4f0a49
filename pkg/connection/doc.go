// Package connection turns the asynchronous events of a station's network
// stack into a blocking connect call.
//
// A Manager owns one connection attempt at a time. Connect initializes the
// radio with the stored credentials, registers the event bridge and blocks
// until the station holds both an IPv4 address and an IPv6 link-local
// address. Disconnect tears the attempt down again.
//
// # Event bridge
//
// While an attempt is active the bridge reacts to four stack events:
//
//	STA_DISCONNECTED   issue one reconnect request to the radio
//	STA_CONNECTED      request an IPv6 link-local address
//	GOT_IP4            record the address, latch the IPv4 flag
//	GOT_IP6_LINKLOCAL  record the address, latch the IPv6 flag
//
// Latches are never cleared while the attempt lives, so a later disconnect
// does not make Connect block again. Reconnection after a drop is the
// bridge's job and is reported through OnDisconnected / OnConnected.
// Those callbacks run off the event delivery goroutine, so they may call
// Disconnect.
//
// # Reconnection Strategy
//
// When the radio refuses a reconnect request, the bridge retries with
// exponential backoff:
//
//  1. Initial delay: 1 second
//  2. Exponential increase: 2s, 4s, 8s, 16s, 32s
//  3. Maximum delay: 60 seconds
//  4. Reset to 1s once an IPv4 address is acquired
//
// # Jitter
//
//	actual_delay = base_delay + random(0, base_delay * 0.25)
package connection

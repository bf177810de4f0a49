// Package credentials holds the Wi-Fi station credentials.
//
// The radio consumes credentials as fixed-capacity, NUL-terminated buffers:
// 32 bytes for the SSID and 64 bytes for the passphrase. A Store mirrors that
// layout so a value that fits the Store is guaranteed to fit the radio
// configuration. Values that would be truncated are rejected with a
// *SizeError.
//
// Credentials are normally set once at startup, before the first connection
// attempt, and are treated as read-only while a connection is active.
package credentials

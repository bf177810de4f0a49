// Package discovery announces the station's CoAP endpoint with DNS-SD over
// mDNS.
//
// While the station is connected it advertises one instance of
// "_coap._udp" in the "local" domain. The TXT record carries:
//
//	id   stable instance ID
//	res  served resource paths, comma-separated
//	fw   firmware version (optional)
//	ssid network the station joined (optional)
//
// DiscoveryManager follows the connection: it advertises on connect,
// withdraws on disconnect and re-announces when the station reconnects.
package discovery

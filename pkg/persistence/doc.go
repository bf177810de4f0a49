// Package persistence stores the station's runtime state across restarts.
//
// The state is a small JSON file holding the stable DNS-SD instance ID and
// a record of the last successful connection. Credentials are not stored
// here; they come from the credentials file or flags.
package persistence

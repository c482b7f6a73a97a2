// Package config provides configuration types for the shop.
package config

// Mode specifies which shop implementation to use.
type Mode string

const (
	// ModeEmbedded uses an in-process embedded implementation.
	ModeEmbedded Mode = "embedded"
	// ModeRemote uses a REST client to connect to a remote shop server.
	ModeRemote Mode = "remote"
)

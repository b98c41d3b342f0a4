package relay

import (
	"time"

	"golang.org/x/time/rate"
)

// Config holds configuration for the relay server
type Config struct {
	// Addr is the TCP listen address
	Addr string
	// PairingTimeout bounds how long a logged-in client waits for a partner
	PairingTimeout time.Duration
	// MaxLineLength is the longest accepted input line in bytes
	MaxLineLength int
	// WriteTimeout bounds a single write to any client socket
	WriteTimeout time.Duration
	// MaxConnections caps live connections; 0 means unlimited
	MaxConnections int
	// AuthRate and AuthBurst throttle REGISTER/LOGIN attempts per connection
	AuthRate  rate.Limit
	AuthBurst int
}

// DefaultConfig returns sensible defaults for the relay server
func DefaultConfig() Config {
	return Config{
		Addr:           ":8080",
		PairingTimeout: 15 * time.Second,
		MaxLineLength:  4096,
		WriteTimeout:   10 * time.Second,
		MaxConnections: 0,
		AuthRate:       rate.Every(time.Second),
		AuthBurst:      5,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.Addr == "" {
		c.Addr = def.Addr
	}
	if c.PairingTimeout == 0 {
		c.PairingTimeout = def.PairingTimeout
	}
	if c.MaxLineLength == 0 {
		c.MaxLineLength = def.MaxLineLength
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = def.WriteTimeout
	}
	if c.AuthRate == 0 {
		c.AuthRate = def.AuthRate
	}
	if c.AuthBurst == 0 {
		c.AuthBurst = def.AuthBurst
	}
	return c
}

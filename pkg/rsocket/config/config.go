// Package config holds the connection-level configuration table from
// spec.md §6: resumability, keepalive parameters, protocol version
// pinning, MIME types, and role.
package config

import (
	"time"

	"github.com/dymk/rsocket-go/pkg/rsocket/rlog"
)

// Mode selects stream-id parity, keepalive direction, and resume role.
type Mode int

const (
	ModeClient Mode = iota
	ModeServer
)

func (m Mode) String() string {
	if m == ModeServer {
		return "server"
	}
	return "client"
}

// Version is a major.minor protocol version pair.
type Version struct {
	Major uint16
	Minor uint16
}

// DefaultVersion is the protocol version used when none is forced and, on
// the client, no autodetect is applicable.
var DefaultVersion = Version{Major: 1, Minor: 0}

// Config is the immutable configuration a Connection is built from.
type Config struct {
	Mode Mode

	// Resumable enables RESUME_ENABLE in SETUP and maintains the resume
	// cache and token for this connection.
	Resumable bool
	// ResumeToken is required when Resumable is true. Server-side, it is
	// the key streams are recovered under; client-side, it is echoed in
	// RESUME on reconnect.
	ResumeToken []byte
	// ResumeCacheSize bounds the outbound resume ring cache, in frames.
	// Zero selects DefaultResumeCacheSize.
	ResumeCacheSize int

	KeepaliveInterval time.Duration
	MaxLifetime       time.Duration

	// ProtocolVersion forces a version; the zero Version means "autodetect
	// on the server, DefaultVersion on the client".
	ProtocolVersion Version

	MetadataMimeType string
	DataMimeType     string

	Logger rlog.Logger
}

const (
	DefaultResumeCacheSize      = 4096
	DefaultKeepaliveInterval    = 20 * time.Second
	DefaultMaxLifetime          = 90 * time.Second
	DefaultMetadataMimeType     = "application/octet-stream"
	DefaultDataMimeType         = "application/octet-stream"
)

// New returns a Config with defaults applied, then Options applied in order.
func New(mode Mode, opts ...Option) *Config {
	c := &Config{
		Mode:              mode,
		ResumeCacheSize:   DefaultResumeCacheSize,
		KeepaliveInterval: DefaultKeepaliveInterval,
		MaxLifetime:       DefaultMaxLifetime,
		MetadataMimeType:  DefaultMetadataMimeType,
		DataMimeType:      DefaultDataMimeType,
		Logger:            rlog.Nop{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Option mutates a Config under construction.
type Option func(*Config)

func WithResume(token []byte) Option {
	return func(c *Config) {
		c.Resumable = true
		c.ResumeToken = token
	}
}

func WithResumeCacheSize(n int) Option {
	return func(c *Config) { c.ResumeCacheSize = n }
}

func WithKeepalive(interval, maxLifetime time.Duration) Option {
	return func(c *Config) {
		c.KeepaliveInterval = interval
		c.MaxLifetime = maxLifetime
	}
}

func WithProtocolVersion(v Version) Option {
	return func(c *Config) { c.ProtocolVersion = v }
}

func WithMimeTypes(metadata, data string) Option {
	return func(c *Config) {
		c.MetadataMimeType = metadata
		c.DataMimeType = data
	}
}

func WithLogger(l rlog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Package config defines the configuration shape consumed by the
// framework glue, per spec.md §6's "exhaustive for the core" list.
// Loading configuration from disk is explicitly out of scope (spec.md
// §1 Non-goals); these are plain struct shapes with yaml tags in the
// teacher's annotation style, for an embedding program to decode
// itself (e.g. with gopkg.in/yaml.v3, as the rest of the pack does).
package config

import "time"

// ChannelNames names the three WikiaRC IRC channels KockaLogger
// joins, per spec.md §6's "channels:{rc,discussions,newusers}".
type ChannelNames struct {
	RC          string `yaml:"rc"`
	Discussions string `yaml:"discussions"`
	Newusers    string `yaml:"newusers"`
}

// UserNames restricts which IRC nicknames are trusted as the feed
// source per channel, per spec.md §6's "users:{rc,discussions,newusers}".
type UserNames struct {
	RC          string `yaml:"rc"`
	Discussions string `yaml:"discussions"`
	Newusers    string `yaml:"newusers"`
}

// ClientConfig configures the IRC connection. KockaLogger is agnostic
// to the IRC library (spec.md §6); these fields are handed to
// whichever one the embedding program wires up.
type ClientConfig struct {
	Server   string `yaml:"server"`
	Port     int    `yaml:"port"`
	Nick     string `yaml:"nick"`
	Username string `yaml:"username"`
	Realname string `yaml:"realname"`
	Retries  int    `yaml:"retries"`

	Channels ChannelNames `yaml:"channels"`
	Users    UserNames    `yaml:"users"`
}

// LogConfig configures the structured logger and its optional sinks.
type LogConfig struct {
	Level   string `yaml:"level"`
	Dir     string `yaml:"dir"`
	Discord string `yaml:"discord,omitempty"`
	Stdout  bool   `yaml:"stdout"`
	File    bool   `yaml:"file"`
	Debug   bool   `yaml:"debug"`
}

// CacheConfig configures the Loader's persisted-cache directory, per
// spec.md §6's "cache/" paths.
type CacheConfig struct {
	Dir string `yaml:"dir"`
}

// RedisConfig configures the EnrichmentCache's connection, per
// spec.md §6's "Unix domain socket (default
// /tmp/redis_kockalogger.sock) or TCP". Not named in spec.md §6's
// enumerated Config shape (which predates the enrichment cache's own
// addressing needs), but required for the EnrichmentCache to connect
// at all; see DESIGN.md.
type RedisConfig struct {
	Network string `yaml:"network"` // "unix" or "tcp"
	Address string `yaml:"address"`
}

// DefaultRedisSocket is the Unix domain socket path spec.md §6 names
// as the default.
const DefaultRedisSocket = "/tmp/redis_kockalogger.sock"

// ModuleConfig is the free-form per-module settings blob: its shape
// is module-specific, so it is decoded lazily by each Module's own
// Setup rather than typed here.
type ModuleConfig map[string]interface{}

// Config is the root configuration shape, exhaustive for the core
// per spec.md §6.
type Config struct {
	Client  ClientConfig            `yaml:"client"`
	Log     LogConfig               `yaml:"log"`
	Modules map[string]ModuleConfig `yaml:"modules"`
	Cache   CacheConfig             `yaml:"cache"`
	Redis   RedisConfig             `yaml:"redis"`

	// DrainTimeout bounds how long shutdown waits for in-flight
	// Dispatcher.Execute calls to finish before forcing transports
	// closed, per spec.md §5. Not part of the spec's exhaustive list;
	// defaults to DefaultDrainTimeout when zero.
	DrainTimeout time.Duration `yaml:"drainTimeout"`
}

// DefaultDrainTimeout is the soft shutdown deadline spec.md §5
// specifies ("default 60 s").
const DefaultDrainTimeout = 60 * time.Second

package main

import (
	"github.com/alecthomas/kong"
)

// Flags is the entrypoint's own minimal CLI surface, per spec.md §1
// Non-goals' "no CLI argument parsing beyond the framework-glue
// entrypoint's own minimal flags" — configuration *loading* is out of
// scope, so there is no --config flag here; a caller wires up
// config.Config itself and these flags only cover what the bare
// binary needs to start.
type Flags struct {
	Version  kong.VersionFlag `help:"Show program's version and exit."                                short:"V"`
	CacheDir string           `default:".cache"    help:"Directory for the loader's persisted cache." name:"cache" placeholder:"DIR" short:"C" type:"path"`
	Fetch    bool             `help:"Rebuild the message cache from MediaWiki on startup even if a persisted cache is found."`
	Debug    bool             `help:"Enable debug-level logging."`
}

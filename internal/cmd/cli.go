// Package cmd holds gcfeeder's kong CLI command tree: the root CLI struct,
// logging flags, and the run/config subcommands. Data shapes that survive
// past a single CLI invocation (the config document) live in
// internal/config instead.
package cmd

// CLI is the root command structure parsed by kong in cmd/gcfeeder.
type CLI struct {
	Log LogConfig `embed:"" prefix:"log."`

	Run    RunCommand    `cmd:"" help:"Run gcfeeder, bridging the adapter to virtual gamepads" default:"withargs"`
	Config ConfigCommand `cmd:"" help:"Configuration file management"`
}

// LogConfig controls where and how verbosely gcfeeder logs.
type LogConfig struct {
	Level   string `help:"Log level: trace, debug, info, warn, error" default:"info"`
	File    string `help:"Additional log file path (logs still go to stdout/stderr too)"`
	RawFile string `help:"Hex-dump raw USB-IP traffic of the xbox360 bridge to this file (adapter USB traffic is not traced)"`
}

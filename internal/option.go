package internal

import "io"

// Option is a functional option for configuring the application.
type Option func(*application)

type application struct {
	config    *Config
	logOutput  io.Writer
	forceStdio bool
}

// WithConfig sets the application configuration.
func WithConfig(cfg *Config) Option {
	return func(a *application) {
		a.config = cfg
	}
}

// WithLogOutput redirects the JSON log stream (stdout by default). The MCP
// server needs this because stdout carries the protocol.
func WithLogOutput(w io.Writer) Option {
	return func(a *application) {
		a.logOutput = w
	}
}

// WithForceStdio lets RunMCP open a store whose server lock is still set,
// e.g. one left behind by a server that crashed.
func WithForceStdio(force bool) Option {
	return func(a *application) {
		a.forceStdio = force
	}
}

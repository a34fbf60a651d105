// Package app wires application dependencies for the CLI.
//
// It loads Config from YAML, builds the zap logger, and constructs the
// session store, directory client and high-level services, exposing them via
// the Wire struct for commands to use.
package app

// Package main hosts the pmxfactory CLI.
//
// Most commands are thin IPC calls against a running daemon: assemble channel
// strips and output stages, list what the journal mirrors, inspect assembly
// history, and tail the daemon log. The daemon command runs the daemon in the
// foreground, and the config commands work without one.
package main

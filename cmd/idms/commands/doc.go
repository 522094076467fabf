// Package commands implements the idms command line: key generation, a QUIC
// listener that runs one session guard per connection, and a one-shot sender.
package commands

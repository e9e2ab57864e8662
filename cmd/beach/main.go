// Command beach shares a live terminal session over a peer-to-peer
// WebRTC connection, or attaches to one as a viewer (spec §6).
package main

import "github.com/beach-sh/beach/internal/cli"

func main() {
	cli.Execute()
}

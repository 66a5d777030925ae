// displaykey hashes a display key for config/server.toml [display] key_hash.
//
// Usage: displaykey <key>
package main

import (
	"fmt"
	"os"

	gonet "github.com/planetilt/host/internal/net"
)

func main() {
	if len(os.Args) < 2 || os.Args[1] == "" {
		fmt.Fprintln(os.Stderr, "Usage: displaykey <key>")
		os.Exit(1)
	}

	hash, err := gonet.HashDisplayKey(os.Args[1])
	if err != nil {
		fmt.Fprintf(os.Stderr, "hash key: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("key_hash = %q\n", hash)
}

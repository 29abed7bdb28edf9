package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/saturnino-fabrica-de-software/ponto/internal/api/middleware"
)

// Prints a new gate key and the digest to append to GATE_API_KEYS.
// With an argument, prints the digest of that key instead.
func main() {
	key := ""
	if len(os.Args) > 1 {
		key = os.Args[1]
	} else {
		buf := make([]byte, 24)
		if _, err := rand.Read(buf); err != nil {
			fmt.Println("Error:", err)
			os.Exit(1)
		}
		key = "pnt_" + hex.EncodeToString(buf)
	}

	fmt.Printf("KEY=%s\nHASH=%s\n", key, middleware.HashAPIKey(key))
}

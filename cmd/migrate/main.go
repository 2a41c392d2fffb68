package main

import (
	"os"

	_ "github.com/lib/pq" // PostgreSQL driver
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

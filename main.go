// file: main.go
// version: 2.0.0
// guid: 0d6c2b9a-51e4-4f3b-8a72-c9e1f4d08b26

package main

import (
	"fmt"
	"os"

	"github.com/jdfalk/beat-organizer/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/schoolprofile/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Stderr, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "schoolprofile: %v\n", err)
		os.Exit(1)
	}
}

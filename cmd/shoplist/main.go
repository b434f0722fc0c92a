package main

import (
	"fmt"
	"os"

	"shoplist/internal/app"
)

func main() {
	if err := newRootCmd(app.Open).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

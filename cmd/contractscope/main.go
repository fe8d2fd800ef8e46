package main

import (
	"fmt"
	"os"

	"github.com/xab-mack/contractscope/internal/app"
)

func main() {
	if err := app.BuildRoot().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

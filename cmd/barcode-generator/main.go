package main

import (
	"os"

	"barcode-generator/cmd/barcode-generator/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"os"
)

func main() {
	defer Recover()
	if err := execute(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}

package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
)

// Recover turns a panic into a stack dump on stderr and exit status 2.
// Defer it at the top of main.
func Recover() {
	if r := recover(); r != nil {
		writePanic(os.Stderr, r)
		os.Exit(2)
	}
}

func writePanic(w io.Writer, v any) {
	buf := make([]byte, 64<<10)
	buf = buf[:runtime.Stack(buf, false)]
	fmt.Fprintf(w, "cpinfo: panic: %v\n\n%s\n", v, buf)
}

// Package main is the entry point for iperf-harness.
package main

import (
	"os"
)

func main() {
	os.Exit(execute(os.Args[1:]))
}

// Package main provides the entry point for r32vm, a virtual machine for a
// small 32-bit register instruction set.
//
// For the full CLI, use: go run ./cmd/r32vm
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("r32vm - 32-bit register virtual machine")
	fmt.Println("")
	fmt.Println("Usage: r32vm [options] <program.{bin,hex,s}>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config         Path to memory configuration JSON file")
	fmt.Println("  -timing         Enable cycle accounting")
	fmt.Println("  -timing-config  Path to timing configuration JSON file")
	fmt.Println("  -max            Stop after this many instructions")
	fmt.Println("  -snapshot       Snapshot database directory")
	fmt.Println("  -name           Snapshot name")
	fmt.Println("  -resume         Resume from the named snapshot")
	fmt.Println("  -v              Trace each executed instruction")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/r32vm' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/r32vm' instead.")
	}
}

// Package main provides the entry point for rv64sim.
// rv64sim is an instruction-level RV64I/RV64C simulator with an optional
// timing model built on Akita.
//
// For the full CLI, use: go run ./cmd/rv64sim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("rv64sim - RV64I/RV64C Instruction-Level Simulator")
	fmt.Println("")
	fmt.Println("Usage: rv64sim run [flags] <program.elf>")
	fmt.Println("       rv64sim decode <word>...")
	fmt.Println("")
	fmt.Println("Run flags:")
	fmt.Println("  --config         Path to a YAML or JSON configuration file")
	fmt.Println("  --max-steps      Maximum number of steps")
	fmt.Println("  --fault-vector   PC a faulting step redirects to")
	fmt.Println("  --halt-on-fault  Stop at the first fault")
	fmt.Println("  --memory         Memory backend: flat or paged")
	fmt.Println("  --timing         Enable the timing model")
	fmt.Println("  --trace          Log every executed instruction")
	fmt.Println("  -v               Increase log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/rv64sim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/rv64sim' instead.")
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	if len(args) < 2 {
		usage(args)
		return 1
	}

	switch args[1] {
	case "sign":
		return runSign(args[2:])
	case "verify":
		return runVerify(args[2:])
	case "keygen":
		return runKeygen(args[2:])
	case "-h", "--help", "help":
		usage(args)
		return 0
	}

	// Bare invocation signs; the common path needs no subcommand.
	return runSign(args[1:])
}

func usage(args []string) {
	name := "approve-request"
	if len(args) > 0 && args[0] != "" {
		name = filepath.Base(args[0])
	}
	fmt.Fprintf(os.Stderr, "usage:\n")
	fmt.Fprintf(os.Stderr, "  %s [sign] --req-id <REQ-...> --owner <id> --sign <keyfile> --output <file> [--ttl <seconds=300>] [--verify]\n", name)
	fmt.Fprintf(os.Stderr, "  %s verify --in <approval.json> --pubkey-hex <hex>\n", name)
	fmt.Fprintf(os.Stderr, "  %s keygen --out <keyfile>\n", name)
}

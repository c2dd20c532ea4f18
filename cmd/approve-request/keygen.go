package main

import (
	"crypto/ed25519"
	"encoding/hex"
	"flag"
	"fmt"
	"os"

	"credbroker/internal/infra/crypto"
)

func runKeygen(args []string) int {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var outPath string
	fs.StringVar(&outPath, "out", "", "encrypted key file path")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if outPath == "" {
		fmt.Fprintln(os.Stderr, "keygen requires --out")
		return 1
	}
	if _, err := os.Stat(outPath); err == nil {
		fmt.Fprintf(os.Stderr, "refusing to overwrite %s\n", outPath)
		return 1
	}

	passphrase, err := readPassphrase("New key passphrase: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		return 1
	}
	if passphrase == "" {
		fmt.Fprintln(os.Stderr, "empty passphrase not allowed")
		return 1
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		fmt.Fprintf(os.Stderr, "generate key: %v\n", err)
		return 1
	}
	if err := crypto.WriteKeyFile(outPath, key, passphrase); err != nil {
		fmt.Fprintf(os.Stderr, "write key file: %v\n", err)
		return 1
	}

	pub := key.Public().(ed25519.PublicKey)
	fmt.Printf("%s\n", hex.EncodeToString(pub))
	fmt.Fprintf(os.Stderr, "wrote %s; the line above is the public key hex\n", outPath)
	return 0
}

package main

import (
	"crypto/ed25519"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"golang.org/x/term"

	"credbroker/internal/domain"
	"credbroker/internal/infra/crypto"
	"credbroker/internal/usecase"
)

func runSign(args []string) int {
	fs := flag.NewFlagSet("sign", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var reqID string
	var owner string
	var keyPath string
	var outPath string
	var ttl int64
	var verifyMode bool

	fs.StringVar(&reqID, "req-id", "", "credential request id (REQ-YYYYMMDD-HHMMSS-hex)")
	fs.StringVar(&owner, "owner", "", "approver identity")
	fs.StringVar(&keyPath, "sign", "", "encrypted owner key file")
	fs.StringVar(&keyPath, "key", "", "alias for --sign")
	fs.StringVar(&outPath, "output", "", "approval output path (default stdout only)")
	fs.Int64Var(&ttl, "ttl", 300, "approval validity in seconds")
	fs.BoolVar(&verifyMode, "verify", false, "verify the approval at --output instead of signing")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if verifyMode {
		return verifyWithKeyFile(reqID, keyPath, outPath)
	}
	if reqID == "" || owner == "" || keyPath == "" {
		fmt.Fprintln(os.Stderr, "signing requires --req-id, --owner and --sign")
		return 1
	}

	passphrase, err := readPassphrase("Key passphrase: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		return 1
	}

	approval, err := usecase.SignApprovalFile(reqID, owner, keyPath, passphrase, ttl, time.Now)
	if err != nil {
		fmt.Fprintf(os.Stderr, "sign approval: %v\n", err)
		return 1
	}

	out, err := json.MarshalIndent(approval, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode approval: %v\n", err)
		return 1
	}
	out = append(out, '\n')

	if outPath != "" {
		if err := os.WriteFile(outPath, out, 0o600); err != nil {
			fmt.Fprintf(os.Stderr, "write approval: %v\n", err)
			return 1
		}
	}
	os.Stdout.Write(out)
	fmt.Fprintf(os.Stderr, "approved %s as %s, valid until %s\n",
		reqID, owner, approval.ExpiresAt().UTC().Format(time.RFC3339))
	return 0
}

// verifyWithKeyFile re-checks the approval at outPath against the
// public half of the owner key, so the same invocation that signed can
// confirm the artifact with --verify appended.
func verifyWithKeyFile(reqID, keyPath, outPath string) int {
	if keyPath == "" || outPath == "" {
		fmt.Fprintln(os.Stderr, "--verify requires --sign and --output")
		return 1
	}
	passphrase, err := readPassphrase("Key passphrase: ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "read passphrase: %v\n", err)
		return 1
	}
	key, err := crypto.ReadKeyFile(keyPath, passphrase)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read key: %v\n", err)
		return 1
	}
	approval, ok := loadApproval(outPath)
	if !ok {
		return 1
	}
	if reqID != "" && approval.ReqID != reqID {
		fmt.Fprintf(os.Stderr, "approval is for %s, not %s\n", approval.ReqID, reqID)
		return 1
	}
	return reportVerify(approval, key.Public().(ed25519.PublicKey))
}

func runVerify(args []string) int {
	fs := flag.NewFlagSet("verify", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var inPath string
	var pubHex string

	fs.StringVar(&inPath, "in", "", "approval JSON file")
	fs.StringVar(&pubHex, "pubkey-hex", "", "owner public key hex")

	if err := fs.Parse(args); err != nil {
		return 1
	}
	if inPath == "" || pubHex == "" {
		fmt.Fprintln(os.Stderr, "verify requires --in and --pubkey-hex")
		return 1
	}

	approval, ok := loadApproval(inPath)
	if !ok {
		return 1
	}
	pub, err := crypto.ParsePublicKeyHex(pubHex)
	if err != nil {
		fmt.Fprintf(os.Stderr, "parse public key: %v\n", err)
		return 1
	}
	return reportVerify(approval, pub)
}

func loadApproval(path string) (domain.OwnerApproval, bool) {
	raw, err := os.ReadFile(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "read approval: %v\n", err)
		return domain.OwnerApproval{}, false
	}
	var approval domain.OwnerApproval
	if err := json.Unmarshal(raw, &approval); err != nil {
		fmt.Fprintf(os.Stderr, "decode approval: %v\n", err)
		return domain.OwnerApproval{}, false
	}
	return approval, true
}

func reportVerify(approval domain.OwnerApproval, pub ed25519.PublicKey) int {
	if !usecase.VerifyApproval(approval, pub) {
		fmt.Fprintln(os.Stderr, "signature invalid")
		return 1
	}
	if approval.Expired(time.Now()) {
		fmt.Fprintln(os.Stderr, "signature valid, approval expired")
		return 1
	}
	fmt.Fprintln(os.Stderr, "signature valid")
	return 0
}

// readPassphrase takes APPROVE_PASSPHRASE when set, otherwise prompts
// on the terminal with echo disabled. The prompt goes to stderr so
// stdout stays machine-readable.
func readPassphrase(prompt string) (string, error) {
	if env := os.Getenv("APPROVE_PASSPHRASE"); env != "" {
		return env, nil
	}
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", fmt.Errorf("no terminal for passphrase prompt (set APPROVE_PASSPHRASE)")
	}
	fmt.Fprint(os.Stderr, prompt)
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

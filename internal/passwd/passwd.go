// Package passwd implements the operator tool that hashes a password for
// seeding accounts and checks a password against a stored hash of either
// supported scheme.
package passwd

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/dmitrijs2005/docauth/internal/common"
	"github.com/dmitrijs2005/docauth/internal/server/credentials"
	"golang.org/x/term"
)

const usage = `usage:
  passwd hash [-cost N]    read a password and print its bcrypt hash
  passwd verify <hash>     read a password and check it against hash
`

// Test seams for the terminal.
var (
	readPassword = term.ReadPassword
	isTerminal   = term.IsTerminal
)

var ErrMismatch = errors.New("password does not match")

// Run executes one command and returns the process exit code.
func Run(args []string, stdin *os.File, stdout, stderr io.Writer) int {
	if len(args) == 0 {
		fmt.Fprint(stderr, usage)
		return 2
	}

	var err error
	switch args[0] {
	case "hash":
		err = runHash(args[1:], stdin, stdout, stderr)
	case "verify":
		err = runVerify(args[1:], stdin, stdout, stderr)
	default:
		fmt.Fprint(stderr, usage)
		return 2
	}

	if err != nil {
		fmt.Fprintln(stderr, err)
		if errors.Is(err, ErrMismatch) {
			return 1
		}
		return 2
	}
	return 0
}

func runHash(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("hash", flag.ContinueOnError)
	fs.SetOutput(stderr)
	cost := fs.Int("cost", credentials.DefaultCost, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	pw, err := GetPassword(stdin, stderr)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	h, err := credentials.NewHasher(*cost).Hash(string(pw))
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, h)
	return err
}

func runVerify(args []string, stdin *os.File, stdout, stderr io.Writer) error {
	if len(args) != 1 {
		return errors.New("verify needs exactly one hash argument")
	}
	stored := args[0]

	hasher := credentials.NewHasher(credentials.DefaultCost)
	scheme := credentials.DetectScheme(stored)
	if scheme == credentials.SchemeUnknown {
		return errors.New("unrecognised hash format")
	}

	pw, err := GetPassword(stdin, stderr)
	if err != nil {
		return err
	}
	defer common.WipeByteArray(pw)

	if !hasher.Verify(string(pw), stored) {
		return ErrMismatch
	}
	_, err = fmt.Fprintf(stdout, "ok (%s)\n", scheme)
	return err
}

// GetPassword reads a password without echo when in is a terminal, or one
// line from in otherwise so the tool can be scripted. The prompt goes to w.
// The caller should wipe the returned slice.
func GetPassword(in *os.File, w io.Writer) ([]byte, error) {
	if !isTerminal(int(in.Fd())) {
		line, err := bufio.NewReader(in).ReadString('\n')
		if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
			return nil, fmt.Errorf("read password: %w", err)
		}
		return []byte(strings.TrimRight(line, "\r\n")), nil
	}

	if _, err := fmt.Fprint(w, "Enter password: "); err != nil {
		return nil, err
	}
	pw, err := readPassword(int(in.Fd()))
	fmt.Fprintln(w)
	if err != nil {
		return nil, err
	}
	return pw, nil
}

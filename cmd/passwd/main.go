package main

import (
	"os"

	"github.com/dmitrijs2005/docauth/internal/passwd"
)

func main() {
	os.Exit(passwd.Run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

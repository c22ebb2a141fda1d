package main

import (
	"fmt"
	"os"

	"github.com/deweiiss/sportMe-sub000/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "matchctl:", err)
		os.Exit(1)
	}
}

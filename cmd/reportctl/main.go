package main

import (
	"fmt"
	"os"

	"github.com/tsyork/loanwatch-jasper-reports/pkg/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

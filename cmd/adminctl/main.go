// Command adminctl provisions and manages catering admin accounts.
package main

import (
	"fmt"
	"os"
)

func main() {
	a := &app{out: os.Stdout, readPassword: promptPassword}
	defer a.close()

	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		a.close()
		os.Exit(1)
	}
}

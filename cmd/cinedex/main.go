// Command cinedex inspects and maintains a cinedex catalog from the shell.
package main

import "os"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

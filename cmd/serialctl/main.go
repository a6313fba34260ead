// Command serialctl talks to a microcontroller over USB serial, Bluetooth RFCOMM or a TCP
// serial bridge.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

package main

import (
	"os"

	"github.com/retrogamesets/psadiag"
)

func main() {
	os.Exit(psadiag.Run())
}

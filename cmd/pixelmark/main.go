package main

import (
	"fmt"
	"os"

	"github.com/digitorus/pixelmark/cli"
)

func main() {
	if len(os.Args) < 2 {
		cli.Usage()
		return
	}

	switch os.Args[1] {
	case "embed":
		cli.EmbedCommand()
	case "extract":
		cli.ExtractCommand()
	case "verify":
		cli.VerifyCommand()
	case "evidence":
		cli.EvidenceCommand()
	case "-h", "--help", "help":
		cli.Usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		cli.Usage()
	}
}

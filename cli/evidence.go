package cli

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/digitorus/pixelmark/evidence"
)

func EvidenceCommand() {
	evidenceFlags := flag.NewFlagSet("evidence", flag.ExitOnError)

	var rootsPath string
	var requireTimestamp bool
	evidenceFlags.StringVar(&rootsPath, "roots", "", "PEM file with trusted root certificates")
	evidenceFlags.BoolVar(&requireTimestamp, "require-timestamp", false, "Reject bundles without a TSA timestamp")

	evidenceFlags.Usage = func() {
		fmt.Printf("Usage: %s evidence [options] <bundle>\n\n", os.Args[0])
		fmt.Println("Check the signature of an evidence bundle and print the signed report as JSON")
		fmt.Println("\nOptions:")
		evidenceFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s evidence case.pxev\n", os.Args[0])
		fmt.Printf("  %s evidence -roots ca.pem -require-timestamp case.pxev\n", os.Args[0])
	}

	if err := evidenceFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse evidence flags: %v", err)
		osExit(1)
		return
	}

	if len(evidenceFlags.Args()) < 1 {
		evidenceFlags.Usage()
		osExit(1)
		return
	}

	options := evidence.DefaultVerifyOptions()
	options.RequireTimestamp = requireTimestamp
	if rootsPath != "" {
		roots, err := LoadRoots(rootsPath)
		if err != nil {
			log.Println(err)
			osExit(1)
			return
		}
		options.Roots = roots
	}
	CheckEvidence(evidenceFlags.Arg(0), options)
}

// CheckEvidence is replaced in tests.
var CheckEvidence = checkEvidenceImpl

func checkEvidenceImpl(input string, options *evidence.VerifyOptions) {
	f, err := os.Open(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Printf("error closing bundle: %v", err)
		}
	}()

	bundle, err := evidence.ReadBundle(f)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	v, err := evidence.VerifySignature(bundle, options)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	printJSON(v)
}

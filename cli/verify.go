package cli

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/digitorus/pixelmark/config"
	"github.com/digitorus/pixelmark/evidence"
)

// evidenceOutput names the files used to sign a verification result.
type evidenceOutput struct {
	path     string
	certPath string
	keyPath  string
}

func VerifyCommand() {
	verifyFlags := flag.NewFlagSet("verify", flag.ExitOnError)

	var o options
	var out evidenceOutput
	o.register(verifyFlags)
	verifyFlags.Float64Var(&o.threshold, "threshold", 0.3, "Detection confidence threshold")
	verifyFlags.StringVar(&out.path, "evidence", "", "Write a signed evidence bundle to this path")
	verifyFlags.StringVar(&out.certPath, "cert", "", "Certificate used to sign the evidence bundle")
	verifyFlags.StringVar(&out.keyPath, "key", "", "Private key used to sign the evidence bundle")
	verifyFlags.StringVar(&o.tsa, "tsa", "", "URL for Time-Stamp Authority")

	verifyFlags.Usage = func() {
		fmt.Printf("Usage: %s verify [options] <input>\n\n", os.Args[0])
		fmt.Println("Verify whether an image carries a watermark and print the result as JSON")
		fmt.Println("\nOptions:")
		verifyFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s verify -seed img-001 leaked.png\n", os.Args[0])
		fmt.Printf("  %s verify -seed img-001 -evidence case.pxev -cert cert.pem -key key.pem -tsa https://freetsa.org/tsr leaked.png\n", os.Args[0])
	}

	if err := verifyFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse verify flags: %v", err)
		osExit(1)
		return
	}

	if len(verifyFlags.Args()) < 1 {
		verifyFlags.Usage()
		osExit(1)
		return
	}
	if out.path != "" && (out.certPath == "" || out.keyPath == "") {
		fmt.Fprintf(os.Stderr, "Writing evidence requires -cert and -key\n")
		osExit(1)
		return
	}

	cfg, err := o.resolve(verifyFlags)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	VerifyImage(verifyFlags.Arg(0), o.seed, cfg, out)
}

// VerifyImage is replaced in tests.
var VerifyImage = verifyImageImpl

func verifyImageImpl(input, seed string, cfg config.Config, out evidenceOutput) {
	search, ok := openSearch(input, seed, cfg)
	if !ok {
		return
	}
	resp := search.Response()

	if out.path != "" {
		cert, key, err := LoadCertificateAndKey(out.certPath, out.keyPath)
		if err != nil {
			log.Println(err)
			osExit(1)
			return
		}
		bundle, err := search.Evidence(context.Background(), filepath.Base(input), key, cert, &evidence.SignOptions{
			TSA: evidence.TSA{URL: cfg.TSAURL},
		})
		if err != nil {
			log.Println(err)
			osExit(1)
			return
		}
		if err := writeBundle(out.path, bundle); err != nil {
			log.Println(err)
			osExit(1)
			return
		}
		log.Println("Evidence bundle written to " + out.path)
	}

	printJSON(resp)
	if err := resp.Err(); err != nil {
		log.Println(err)
		osExit(1)
	}
}

func writeBundle(path string, bundle *evidence.Bundle) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if _, err := bundle.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

package cli

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/digitorus/pixelmark"
	"github.com/digitorus/pixelmark/config"
	"github.com/digitorus/pixelmark/verify"
)

// extractOutput is the JSON printed by the extract command.
type extractOutput struct {
	Found      bool                `json:"found"`
	Confidence float64             `json:"confidence"`
	Payload    *verify.PayloadInfo `json:"payload,omitempty"`
}

func ExtractCommand() {
	extractFlags := flag.NewFlagSet("extract", flag.ExitOnError)

	var o options
	o.register(extractFlags)
	extractFlags.Float64Var(&o.threshold, "threshold", 0.3, "Detection confidence threshold")

	extractFlags.Usage = func() {
		fmt.Printf("Usage: %s extract [options] <input>\n\n", os.Args[0])
		fmt.Println("Extract the watermark payload from an image and print it as JSON")
		fmt.Println("\nOptions:")
		extractFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s extract -seed img-001 leaked.png\n", os.Args[0])
		fmt.Printf("  %s extract -seed img-001 -seal-key seal.key leaked.jpg\n", os.Args[0])
	}

	if err := extractFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse extract flags: %v", err)
		osExit(1)
		return
	}

	if len(extractFlags.Args()) < 1 {
		extractFlags.Usage()
		osExit(1)
		return
	}

	cfg, err := o.resolve(extractFlags)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	ExtractImage(extractFlags.Arg(0), o.seed, cfg)
}

// ExtractImage is replaced in tests.
var ExtractImage = extractImageImpl

func extractImageImpl(input, seed string, cfg config.Config) {
	search, ok := openSearch(input, seed, cfg)
	if !ok {
		return
	}

	resp := search.Response()
	printJSON(extractOutput{
		Found:      resp.Detection.Found,
		Confidence: resp.Detection.Confidence,
		Payload:    resp.Payload,
	})
	if !resp.Detection.Found {
		osExit(1)
	}
}

// openSearch prepares a watermark search over an image file. It reports false
// after logging and exiting on failure.
func openSearch(input, seed string, cfg config.Config) (*pixelmark.ExtractBuilder, bool) {
	if seed == "" {
		log.Println("a seed is required (-seed)")
		osExit(1)
		return nil, false
	}
	sealer, err := newSealer(cfg)
	if err != nil {
		log.Println(err)
		osExit(1)
		return nil, false
	}
	img, err := pixelmark.OpenFile(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return nil, false
	}
	return img.Extract(seed).
		Strength(cfg.Strength).
		Threshold(cfg.Threshold).
		Workers(cfg.Workers).
		Seal(sealer), true
}

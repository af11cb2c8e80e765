package cli

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/digitorus/pixelmark/config"
	"github.com/digitorus/pixelmark/seal"
)

// osExit is replaced in tests.
var osExit = os.Exit

func Usage() {
	fmt.Printf("Usage: %s <command> [options] <args>\n\n", os.Args[0])
	fmt.Println("Commands:")
	fmt.Println("  embed     Embed a watermark into an image")
	fmt.Println("  extract   Extract a watermark payload from an image")
	fmt.Println("  verify    Verify an image and optionally sign the result as evidence")
	fmt.Println("  evidence  Check a signed evidence bundle")
	fmt.Println("")
	fmt.Printf("Use '%s <command> -h' for command-specific help\n", os.Args[0])
	osExit(1)
}

// options holds the flags shared by the image commands. Values explicitly set on
// the command line override the config file.
type options struct {
	configPath string
	seed       string
	strength   float64
	threshold  float64
	workers    int
	sealKey    string

	// embed
	format   string
	quality  int
	platform int

	// verify
	tsa string
}

func (o *options) register(fs *flag.FlagSet) {
	fs.StringVar(&o.configPath, "config", "", "Path to a TOML config file")
	fs.StringVar(&o.seed, "seed", "", "Secret seed selecting the watermark pattern (required)")
	fs.Float64Var(&o.strength, "strength", 8.0, "Embedding strength; must match between embed and extract")
	fs.IntVar(&o.workers, "workers", 0, "Number of block workers (0 = one per CPU)")
	fs.StringVar(&o.sealKey, "seal-key", "", "File holding the payload sealing secret")
}

// resolve merges the config file, or the defaults, with the flags set on the
// command line and validates the result.
func (o *options) resolve(fs *flag.FlagSet) (config.Config, error) {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.Read(o.configPath); err != nil {
			return cfg, err
		}
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "strength":
			cfg.Strength = o.strength
		case "threshold":
			cfg.Threshold = o.threshold
		case "workers":
			cfg.Workers = o.workers
		case "seal-key":
			cfg.SealKeyFile = o.sealKey
		case "format":
			cfg.Format = o.format
		case "quality":
			cfg.JPEGQuality = o.quality
		case "platform":
			cfg.PlatformCode = o.platform
		case "tsa":
			cfg.TSAURL = o.tsa
		}
	})

	if err := cfg.ValidateFields(); err != nil {
		return cfg, fmt.Errorf("invalid settings: %w", err)
	}
	return cfg, nil
}

func newSealer(cfg config.Config) (seal.Sealer, error) {
	secret, err := cfg.SealSecret()
	if err != nil || secret == nil {
		return nil, err
	}
	s, err := seal.New(secret)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func printJSON(v any) {
	jsonData, err := json.Marshal(v)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	fmt.Println(string(jsonData))
}

package cli

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/digitorus/pixelmark"
	"github.com/digitorus/pixelmark/config"
	"github.com/digitorus/pixelmark/images"
	"github.com/digitorus/pixelmark/payload"
)

func EmbedCommand() {
	embedFlags := flag.NewFlagSet("embed", flag.ExitOnError)

	var o options
	var ip, fingerprint string
	var unixTime int64
	o.register(embedFlags)
	embedFlags.StringVar(&o.format, "format", "", "Output format (png, jpeg, bmp, tiff, qoi); defaults to the output extension")
	embedFlags.IntVar(&o.quality, "quality", 95, "JPEG quality")
	embedFlags.IntVar(&o.platform, "platform", 0, "Platform code (0-255)")
	embedFlags.StringVar(&ip, "ip", "0.0.0.0", "IPv4 address of the recipient")
	embedFlags.StringVar(&fingerprint, "fingerprint", "", "Recipient identifier; the first 8 bytes of its SHA-256 are embedded")
	embedFlags.Int64Var(&unixTime, "timestamp", 0, "Unix time to embed (default now)")

	embedFlags.Usage = func() {
		fmt.Printf("Usage: %s embed [options] <input> <output>\n\n", os.Args[0])
		fmt.Println("Embed an invisible watermark into an image")
		fmt.Println("\nOptions:")
		embedFlags.PrintDefaults()
		fmt.Println("\nExamples:")
		fmt.Printf("  %s embed -seed img-001 -ip 192.168.1.1 -fingerprint user-42 -platform 3 in.png out.png\n", os.Args[0])
		fmt.Printf("  %s embed -config pixelmark.toml -seed img-001 -format jpeg -quality 92 in.png out.jpg\n", os.Args[0])
	}

	if err := embedFlags.Parse(os.Args[2:]); err != nil {
		log.Printf("Failed to parse embed flags: %v", err)
		osExit(1)
		return
	}

	if len(embedFlags.Args()) < 2 {
		embedFlags.Usage()
		osExit(1)
		return
	}

	cfg, err := o.resolve(embedFlags)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	if o.format == "" {
		if f, err := images.ParseFormat(filepath.Ext(embedFlags.Arg(1))); err == nil && f.Encodable() {
			cfg.Format = f.String()
		}
	}

	addr, err := payload.ParseIPv4(ip)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	if unixTime == 0 {
		unixTime = time.Now().Unix()
	}
	if unixTime < 0 || unixTime > 0xFFFFFFFF {
		log.Printf("timestamp %d does not fit in 32 bits", unixTime)
		osExit(1)
		return
	}

	p := payload.Payload{
		Timestamp:   uint32(unixTime),
		IPv4:        addr,
		Fingerprint: payload.Fingerprint(fingerprint),
		Platform:    uint8(cfg.PlatformCode),
	}
	EmbedImage(embedFlags.Arg(0), embedFlags.Arg(1), o.seed, p, cfg)
}

// EmbedImage is replaced in tests.
var EmbedImage = embedImageImpl

func embedImageImpl(input, output, seed string, p payload.Payload, cfg config.Config) {
	if seed == "" {
		log.Println("a seed is required (-seed)")
		osExit(1)
		return
	}

	format, err := images.ParseFormat(cfg.Format)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	sealer, err := newSealer(cfg)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	img, err := pixelmark.OpenFile(input)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	outputFile, err := os.Create(output)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}
	defer func() {
		if err := outputFile.Close(); err != nil {
			log.Printf("error closing output file: %v", err)
		}
	}()

	result, err := img.Embed(p, seed).
		Strength(cfg.Strength).
		Workers(cfg.Workers).
		Seal(sealer).
		Format(format).
		Quality(cfg.JPEGQuality).
		Write(outputFile)
	if err != nil {
		log.Println(err)
		osExit(1)
		return
	}

	if result.Redundancy < 1 {
		log.Printf("warning: image is too small to carry every payload bit (%d blocks)", result.Blocks)
	}
	if format.Lossy() {
		log.Printf("warning: %s output degrades the watermark", format)
	}
	log.Printf("Watermarked image written to %s (%s, sha256 %s)", output, format, result.SHA256)
}

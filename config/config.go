// Package config loads pixelmark settings from a TOML file.
package config

import (
	"bytes"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/asaskevich/govalidator"
)

func init() {
	govalidator.SetFieldsRequiredByDefault(true)
}

// DefaultLocation is where the command line looks for a config file.
var DefaultLocation = "./pixelmark.toml"

// Config is the root of the config
type Config struct {
	// Strength is the embedding amplitude; it must match between embed and extract.
	Strength float64 `toml:"strength" valid:"range(1|64)"`

	// Threshold is the detection confidence threshold.
	Threshold float64 `toml:"threshold" valid:"range(0|1)"`

	// Workers bounds block workers; 0 selects the number of CPUs.
	Workers int `toml:"workers" valid:"range(0|1024),optional"`

	// Format is the output image format.
	Format string `toml:"format" valid:"in(png|jpeg|jpg|bmp|tiff|tif|qoi)"`

	JPEGQuality int `toml:"jpeg_quality" valid:"range(1|100),optional"`

	// SealKeyFile holds the secret for payload sealing. Empty disables sealing.
	SealKeyFile string `toml:"seal_key_file" valid:"optional"`

	// TSAURL is the Time-Stamp Authority used for evidence signatures.
	TSAURL string `toml:"tsa_url" valid:"url,optional"`

	// PlatformCode is the default payload platform code.
	PlatformCode int `toml:"platform_code" valid:"range(0|255),optional"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Strength:    8.0,
		Threshold:   0.3,
		Format:      "png",
		JPEGQuality: 95,
	}
}

// ValidateFields validates all the fields of the config
func (c Config) ValidateFields() error {
	_, err := govalidator.ValidateStruct(c)
	if err != nil {
		return err
	}
	return nil
}

// Read loads configfile over the defaults and validates the result. Unknown keys
// are rejected.
func Read(configfile string) (Config, error) {
	c := Default()
	if _, err := os.Stat(configfile); err != nil {
		return c, fmt.Errorf("config file is missing: %s", configfile)
	}

	md, err := toml.DecodeFile(configfile, &c)
	if err != nil {
		return c, fmt.Errorf("config file %s: %w", configfile, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return c, fmt.Errorf("config file %s: unknown keys %v", configfile, undecoded)
	}

	if err := c.ValidateFields(); err != nil {
		return c, fmt.Errorf("config is not valid: %w", err)
	}
	return c, nil
}

// SealSecret reads the sealing secret, or returns nil when sealing is disabled.
// Trailing line breaks are stripped.
func (c Config) SealSecret() ([]byte, error) {
	if c.SealKeyFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(c.SealKeyFile)
	if err != nil {
		return nil, fmt.Errorf("read seal key: %w", err)
	}
	return bytes.TrimRight(data, "\r\n"), nil
}

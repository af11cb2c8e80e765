package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/BurntSushi/toml"
	"github.com/digitorus/pixelmark/config"
	"github.com/stretchr/testify/assert"
)

func TestConfig(t *testing.T) {
	const configContent = `
strength = 6.5
threshold = 0.4
workers = 4
format = "jpeg"
jpeg_quality = 90
seal_key_file = "/etc/pixelmark/seal.key"
tsa_url = "https://freetsa.org/tsr"
platform_code = 3
`

	var c config.Config

	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	assert.Equal(t, 6.5, c.Strength)
	assert.Equal(t, 0.4, c.Threshold)
	assert.Equal(t, 4, c.Workers)
	assert.Equal(t, "jpeg", c.Format)
	assert.Equal(t, 90, c.JPEGQuality)
	assert.Equal(t, "/etc/pixelmark/seal.key", c.SealKeyFile)
	assert.Equal(t, "https://freetsa.org/tsr", c.TSAURL)
	assert.Equal(t, 3, c.PlatformCode)
	assert.NoError(t, c.ValidateFields())
}

func TestValidation(t *testing.T) {
	const configContent = ``

	var c config.Config
	if _, err := toml.Decode(configContent, &c); err != nil {
		t.Error(err)
	}

	err := c.ValidateFields()
	assert.NotNil(t, err)
}

func TestDefaultIsValid(t *testing.T) {
	assert.NoError(t, config.Default().ValidateFields())
}

func TestValidationRanges(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
	}{
		{"strength", func(c *config.Config) { c.Strength = 100 }},
		{"threshold", func(c *config.Config) { c.Threshold = 1.5 }},
		{"format", func(c *config.Config) { c.Format = "gif" }},
		{"jpeg quality", func(c *config.Config) { c.JPEGQuality = 101 }},
		{"platform", func(c *config.Config) { c.PlatformCode = 256 }},
		{"tsa url", func(c *config.Config) { c.TSAURL = "not a url" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := config.Default()
			tt.modify(&c)
			assert.Error(t, c.ValidateFields())
		})
	}
}

func TestRead(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "pixelmark.toml")
	assert.NoError(t, os.WriteFile(path, []byte("strength = 4.0\nplatform_code = 7\n"), 0o600))

	c, err := config.Read(path)
	assert.NoError(t, err)
	assert.Equal(t, 4.0, c.Strength)
	assert.Equal(t, 7, c.PlatformCode)
	// Unset keys keep their defaults.
	assert.Equal(t, "png", c.Format)
	assert.Equal(t, 0.3, c.Threshold)
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	_, err := config.Read(filepath.Join(dir, "missing.toml"))
	assert.ErrorContains(t, err, "missing")

	unknown := filepath.Join(dir, "unknown.toml")
	assert.NoError(t, os.WriteFile(unknown, []byte("colour = \"blue\"\n"), 0o600))
	_, err = config.Read(unknown)
	assert.ErrorContains(t, err, "unknown keys")

	invalid := filepath.Join(dir, "invalid.toml")
	assert.NoError(t, os.WriteFile(invalid, []byte("threshold = 7.0\n"), 0o600))
	_, err = config.Read(invalid)
	assert.ErrorContains(t, err, "not valid")

	broken := filepath.Join(dir, "broken.toml")
	assert.NoError(t, os.WriteFile(broken, []byte("strength = \n"), 0o600))
	_, err = config.Read(broken)
	assert.Error(t, err)
}

func TestSealSecret(t *testing.T) {
	c := config.Default()
	secret, err := c.SealSecret()
	assert.NoError(t, err)
	assert.Nil(t, secret)

	c.SealKeyFile = filepath.Join(t.TempDir(), "seal.key")
	assert.NoError(t, os.WriteFile(c.SealKeyFile, []byte("0123456789abcdef\n"), 0o600))
	secret, err = c.SealSecret()
	assert.NoError(t, err)
	assert.Equal(t, []byte("0123456789abcdef"), secret)

	c.SealKeyFile = filepath.Join(t.TempDir(), "absent.key")
	_, err = c.SealSecret()
	assert.Error(t, err)
}

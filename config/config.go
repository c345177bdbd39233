// Package config loads cmd/ltsmd's daemon configuration from a YAML
// file.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/ltsm-go/ltsmcore/internal/codec"
)

// Config is ltsmd's top-level daemon configuration.
type Config struct {
	// Listen is the TCP address to accept RFB connections on, e.g.
	// ":5900".
	Listen string `yaml:"listen"`

	DesktopName string `yaml:"desktop_name"`
	Desktop     Desktop `yaml:"desktop"`

	// Workers sizes the tile encoder pool (session.Config.Workers); 0
	// means the session package's own default.
	Workers  int    `yaml:"workers"`
	TileSize uint16 `yaml:"tile_size"`

	// CodecPriority overrides codec.PriorityOrder when non-empty, listed
	// by encoding name (e.g. "zrle", "hextile", "raw").
	CodecPriority []string `yaml:"codec_priority"`

	Security Security `yaml:"security"`
}

// Desktop is the server's advertised/initial screen size.
type Desktop struct {
	Width  uint16 `yaml:"width"`
	Height uint16 `yaml:"height"`
}

// Security groups every security-type-specific setting.
type Security struct {
	// PasswordFile is a line-per-password plaintext file for VNCAuth.
	PasswordFile string `yaml:"password_file"`

	VeNCrypt VeNCrypt `yaml:"vencrypt"`
	GSSAPI   GSSAPI   `yaml:"gssapi"`
}

// VeNCrypt holds the TLS certificate/key pair for the VeNCrypt security
// type's X509None subtype; VeNCrypt is offered only when both are set.
type VeNCrypt struct {
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
}

// GSSAPI holds the keytab path and expected principal for the GSSAPI
// security type.
type GSSAPI struct {
	KeytabFile string `yaml:"keytab_file"`
	SPN        string `yaml:"spn"`
	Realm      string `yaml:"realm"`
}

// Load reads and parses a YAML configuration file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	cfg.setDefaults()
	return &cfg, nil
}

func (c *Config) setDefaults() {
	if c.Listen == "" {
		c.Listen = ":5900"
	}
	if c.Desktop.Width == 0 {
		c.Desktop.Width = 1280
	}
	if c.Desktop.Height == 0 {
		c.Desktop.Height = 800
	}
	if c.DesktopName == "" {
		c.DesktopName = "ltsm"
	}
}

// LoadPasswords reads a line-per-password plaintext file,
// skipping blank lines.
func LoadPasswords(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read password file: %w", err)
	}
	var out []string
	start := 0
	for i := 0; i <= len(data); i++ {
		if i == len(data) || data[i] == '\n' {
			line := string(data[start:i])
			line = trimCR(line)
			if line != "" {
				out = append(out, line)
			}
			start = i + 1
		}
	}
	return out, nil
}

func trimCR(s string) string {
	if len(s) > 0 && s[len(s)-1] == '\r' {
		return s[:len(s)-1]
	}
	return s
}

var codecNames = map[string]codec.ID{
	"raw":     codec.Raw,
	"rre":     codec.RRE,
	"corre":   codec.CoRRE,
	"hextile": codec.Hextile,
	"zlib":    codec.Zlib,
	"trle":    codec.TRLE,
	"zrle":    codec.ZRLE,
	"qoi":     codec.QOI,
	"lz4":     codec.LZ4,
	"jpeg":    codec.JPEG,
	"h264":    codec.VideoH264,
	"av1":     codec.VideoAV1,
	"vp8":     codec.VideoVP8,
}

// ResolveCodecPriority resolves the config's codec_priority name list into
// codec.IDs, for overriding codec.PriorityOrder at startup. Unknown names
// are reported, not silently dropped.
func (c *Config) ResolveCodecPriority() ([]codec.ID, error) {
	ids := make([]codec.ID, 0, len(c.CodecPriority))
	for _, name := range c.CodecPriority {
		id, ok := codecNames[name]
		if !ok {
			return nil, fmt.Errorf("unknown codec priority name %q", name)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

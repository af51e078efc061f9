// Package config loads jtagwatch settings from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/OpenTraceLab/jtagwatch/pkg/bsdl"
	"github.com/OpenTraceLab/jtagwatch/pkg/jtag"
)

// Adapter names.
const (
	AdapterSim      = "sim"
	AdapterCMSISDAP = "cmsisdap"
)

// Config holds every setting the commands read. Flags override file values.
type Config struct {
	XDC  string `yaml:"xdc"`
	BSDL string `yaml:"bsdl"`
	// Sensitivity is nil when no filter is configured. An empty string is a
	// filter that matches nothing.
	Sensitivity *string `yaml:"sensitivity"`

	Adapter  string        `yaml:"adapter"`
	Speed    int           `yaml:"speed"`
	Interval time.Duration `yaml:"interval"`

	Capacity    int `yaml:"capacity"`
	ResetPulses int `yaml:"reset_pulses"`

	// Instruction is the SAMPLE opcode used when the BSDL file does not yield
	// one, written MSB first.
	Instruction string `yaml:"instruction"`
	IRLength    int    `yaml:"ir_length"`

	USB USBConfig `yaml:"usb"`
	Sim SimConfig `yaml:"sim"`

	LogFormat string `yaml:"log_format"`
}

// USBConfig selects the CMSIS-DAP probe.
type USBConfig struct {
	VendorID  uint16 `yaml:"vid"`
	ProductID uint16 `yaml:"pid"`
}

// SimConfig describes the simulated target.
type SimConfig struct {
	IDCode uint32 `yaml:"idcode"`
}

// Default returns the built-in settings: simulator adapter, 8192-bit
// capacity and the Xilinx 7-series SAMPLE instruction.
func Default() *Config {
	return &Config{
		Adapter:     AdapterSim,
		Speed:       1_000_000,
		Interval:    100 * time.Millisecond,
		Capacity:    bsdl.DefaultCapacity,
		ResetPulses: 5,
		Instruction: "000001",
		IRLength:    6,
		USB: USBConfig{
			VendorID:  jtag.VendorIDRaspberryPi,
			ProductID: jtag.ProductIDCMSISDAP,
		},
		Sim:       SimConfig{IDCode: 0x0362D093},
		LogFormat: "console",
	}
}

// Load reads path over the defaults. A missing file is an error; callers that
// treat the file as optional check for it first.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	switch c.Adapter {
	case AdapterSim, AdapterCMSISDAP:
	default:
		return fmt.Errorf("unknown adapter %q", c.Adapter)
	}
	if c.Capacity <= 0 || c.Capacity%8 != 0 {
		return fmt.Errorf("capacity %d must be a positive multiple of 8", c.Capacity)
	}
	if c.Speed <= 0 {
		return fmt.Errorf("speed %d must be positive", c.Speed)
	}
	if c.Interval < 0 {
		return errors.New("interval must not be negative")
	}
	if c.ResetPulses < 0 {
		return errors.New("reset_pulses must not be negative")
	}
	if c.IRLength < 1 || c.IRLength > 32 {
		return fmt.Errorf("ir_length %d out of range [1, 32]", c.IRLength)
	}
	if _, err := c.Opcode(); err != nil {
		return err
	}
	return nil
}

// Opcode parses Instruction as an IRLength-bit binary opcode.
func (c *Config) Opcode() (uint32, error) {
	s := strings.TrimSpace(c.Instruction)
	if len(s) != c.IRLength {
		return 0, fmt.Errorf("instruction %q is not %d bits", c.Instruction, c.IRLength)
	}
	var v uint32
	for _, r := range s {
		switch r {
		case '0':
			v <<= 1
		case '1':
			v = v<<1 | 1
		default:
			return 0, fmt.Errorf("instruction %q is not binary", c.Instruction)
		}
	}
	return v, nil
}

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
	"periph.io/x/conn/v3/physic"

	"github.com/bartgrantham/si4703"
)

// Config represents the gofm configuration
type Config struct {
	I2C struct {
		Bus     string `yaml:"bus"`
		Address uint16 `yaml:"address"`
	} `yaml:"i2c"`

	Pins struct {
		Reset string `yaml:"reset"`
		Mode  string `yaml:"mode"` // SDIO, held low during reset then released
		STC   string `yaml:"stc"`  // GPIO2 of the tuner
	} `yaml:"pins"`

	Tuner struct {
		Band           string  `yaml:"band"`
		Spacing        int     `yaml:"spacing"`    // kHz
		DeEmphasis     int     `yaml:"deemphasis"` // µs
		Mono           bool    `yaml:"mono"`
		ExtendedVolume bool    `yaml:"extended_volume"`
		SeekWrap       *bool   `yaml:"seek_wrap"`
		SeekThreshold  uint8   `yaml:"seek_threshold"`
		SeekSNR        uint8   `yaml:"seek_snr"`
		SeekImpulse    uint8   `yaml:"seek_impulse"`
		Softmute       bool    `yaml:"softmute"`
		SoftmuteAtten  int     `yaml:"softmute_attenuation"` // dB: 16, 14, 12 or 10
		SoftmuteRate   string  `yaml:"softmute_rate"`        // fastest, fast, slow, slowest
		Frequency      float64 `yaml:"frequency"`            // MHz, 0 leaves the tuner where it is
		Volume         int     `yaml:"volume"`
		TuneTimeout    int     `yaml:"tune_timeout"` // ms
		WriteAttempts  int     `yaml:"write_attempts"`
	} `yaml:"tuner"`

	RDS struct {
		Enabled   bool   `yaml:"enabled"` // wait for the station name after tuning
		Threshold uint16 `yaml:"threshold"`
		Timeout   int    `yaml:"timeout"` // ms
		RBDS      bool   `yaml:"rbds"`    // North American program type names
	} `yaml:"rds"`

	Logging struct {
		Level      string `yaml:"level"`
		File       string `yaml:"file"`
		Console    bool   `yaml:"console"`
		Structured bool   `yaml:"structured"`
		MaxSize    int    `yaml:"max_size"`    // megabytes
		MaxBackups int    `yaml:"max_backups"` // number of backups
		MaxAge     int    `yaml:"max_age"`     // days
		Compress   bool   `yaml:"compress"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var config Config
	config.setDefaults()
	return &config
}

// LoadConfig loads configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	config.setDefaults()
	return &config, nil
}

func (c *Config) setDefaults() {
	if c.I2C.Bus == "" {
		c.I2C.Bus = "I2C1"
	}
	if c.I2C.Address == 0 {
		c.I2C.Address = si4703.I2CAddr
	}
	if c.Pins.Reset == "" {
		c.Pins.Reset = "GPIO23" // P1_16
	}
	if c.Tuner.Band == "" {
		c.Tuner.Band = "us"
	}
	if c.Tuner.Spacing == 0 {
		c.Tuner.Spacing = 200
	}
	if c.Tuner.DeEmphasis == 0 {
		c.Tuner.DeEmphasis = 75
	}
	if c.Tuner.SeekWrap == nil {
		wrap := true
		c.Tuner.SeekWrap = &wrap
	}
	if c.Tuner.SoftmuteAtten == 0 {
		c.Tuner.SoftmuteAtten = 16
	}
	if c.Tuner.SoftmuteRate == "" {
		c.Tuner.SoftmuteRate = "fastest"
	}
	if c.Tuner.TuneTimeout == 0 {
		c.Tuner.TuneTimeout = 5000
	}
	if c.Tuner.WriteAttempts == 0 {
		c.Tuner.WriteAttempts = 1
	}
	if c.RDS.Threshold == 0 {
		c.RDS.Threshold = 500
	}
	if c.RDS.Timeout == 0 {
		c.RDS.Timeout = 15000
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.MaxSize == 0 {
		c.Logging.MaxSize = 10
	}
	if c.Logging.MaxBackups == 0 {
		c.Logging.MaxBackups = 3
	}
	if c.Logging.MaxAge == 0 {
		c.Logging.MaxAge = 28
	}
}

var bands = map[string]si4703.Band{
	"us":         si4703.BandUSEurope,
	"europe":     si4703.BandUSEurope,
	"us-europe":  si4703.BandUSEurope,
	"japan-wide": si4703.BandJapanWide,
	"japan":      si4703.BandJapan,
}

var spacings = map[int]si4703.Spacing{
	200: si4703.Spacing200kHz,
	100: si4703.Spacing100kHz,
	50:  si4703.Spacing50kHz,
}

var softmuteAttens = map[int]si4703.SoftmuteAttenuation{
	16: si4703.Softmute16dB,
	14: si4703.Softmute14dB,
	12: si4703.Softmute12dB,
	10: si4703.Softmute10dB,
}

var softmuteRates = map[string]si4703.SoftmuteRate{
	"fastest": si4703.SoftmuteFastest,
	"fast":    si4703.SoftmuteFast,
	"slow":    si4703.SoftmuteSlow,
	"slowest": si4703.SoftmuteSlowest,
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.I2C.Address > 0x7f {
		return fmt.Errorf("i2c address 0x%x is not a 7 bit address", c.I2C.Address)
	}
	if _, ok := bands[strings.ToLower(c.Tuner.Band)]; !ok {
		return fmt.Errorf("unknown band %q, want one of us, europe, japan-wide, japan", c.Tuner.Band)
	}
	if _, ok := spacings[c.Tuner.Spacing]; !ok {
		return fmt.Errorf("channel spacing must be 200, 100 or 50 kHz, got %d", c.Tuner.Spacing)
	}
	if c.Tuner.DeEmphasis != 75 && c.Tuner.DeEmphasis != 50 {
		return fmt.Errorf("de-emphasis must be 75 or 50 µs, got %d", c.Tuner.DeEmphasis)
	}
	if c.Tuner.SeekThreshold > 0x7f {
		return fmt.Errorf("seek threshold must be at most 127, got %d", c.Tuner.SeekThreshold)
	}
	if _, ok := softmuteAttens[c.Tuner.SoftmuteAtten]; !ok {
		return fmt.Errorf("softmute attenuation must be 16, 14, 12 or 10 dB, got %d", c.Tuner.SoftmuteAtten)
	}
	if _, ok := softmuteRates[strings.ToLower(c.Tuner.SoftmuteRate)]; !ok {
		return fmt.Errorf("unknown softmute rate %q, want one of fastest, fast, slow, slowest", c.Tuner.SoftmuteRate)
	}
	if c.Tuner.Volume < 0 || c.Tuner.Volume > si4703.MaxVolume {
		return fmt.Errorf("volume must be between 0 and %d, got %d", si4703.MaxVolume, c.Tuner.Volume)
	}
	if f := c.Frequency(); f != 0 {
		b := c.band()
		if f < b.Bottom() || f > b.Top() {
			return fmt.Errorf("frequency %s outside of band %s (%s - %s)", f, b, b.Bottom(), b.Top())
		}
	}
	if c.Tuner.TuneTimeout < 0 || c.RDS.Timeout < 0 {
		return fmt.Errorf("timeouts cannot be negative")
	}
	return nil
}

func (c *Config) band() si4703.Band {
	return bands[strings.ToLower(c.Tuner.Band)]
}

// Frequency returns the configured station, 0 if none.
func (c *Config) Frequency() physic.Frequency {
	return physic.Frequency(c.Tuner.Frequency*1000+0.5) * physic.KiloHertz
}

// RDSTimeout returns how long to wait for a program service name.
func (c *Config) RDSTimeout() time.Duration {
	return time.Duration(c.RDS.Timeout) * time.Millisecond
}

// Opts returns the driver options described by the configuration. Pins are
// left for the caller to open. The configuration must have been validated.
func (c *Config) Opts() si4703.Opts {
	opts := si4703.DefaultOpts
	opts.Addr = c.I2C.Address
	opts.Band = c.band()
	opts.Spacing = spacings[c.Tuner.Spacing]
	opts.DeEmphasis = si4703.DeEmphasis75us
	if c.Tuner.DeEmphasis == 50 {
		opts.DeEmphasis = si4703.DeEmphasis50us
	}
	opts.Mono = c.Tuner.Mono
	opts.ExtendedVolume = c.Tuner.ExtendedVolume
	opts.SeekWrap = c.Tuner.SeekWrap == nil || *c.Tuner.SeekWrap
	opts.SeekThreshold = c.Tuner.SeekThreshold
	opts.SeekSNR = c.Tuner.SeekSNR
	opts.SeekImpulse = c.Tuner.SeekImpulse
	opts.Softmute = c.Tuner.Softmute
	opts.SoftmuteAttenuation = softmuteAttens[c.Tuner.SoftmuteAtten]
	opts.SoftmuteRate = softmuteRates[strings.ToLower(c.Tuner.SoftmuteRate)]
	opts.TuneTimeout = time.Duration(c.Tuner.TuneTimeout) * time.Millisecond
	opts.WriteAttempts = c.Tuner.WriteAttempts
	opts.RDSThreshold = c.RDS.Threshold
	return opts
}

package bass

import (
	"io/ioutil"
	"strconv"
	"strings"
	"time"

	"github.com/mcuadros/go-defaults"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file form of the delegator settings. Zero fields take the
// value of their default tag, so a zero skip cannot be configured here; use
// OptPASyncSkip for that.
type Config struct {
	RecvStateCount   int    `yaml:"recvStateCount" default:"3"`
	PASyncSkip       uint16 `yaml:"paSyncSkip" default:"5"`
	SyncTimeoutRatio int    `yaml:"syncTimeoutRatio" default:"20"`
	LogLevel         string `yaml:"logLevel" default:"info"`

	// CacheFile enables the source cache when set.
	CacheFile string `yaml:"cacheFile"`

	Transport TransportConfig `yaml:"transport"`
}

// TransportConfig selects how the HCI controller is reached. At most one of
// HCIDevice, H4Socket and H4Uart may be set.
type TransportConfig struct {
	// HCIDevice is a Linux HCI device name such as "hci0".
	HCIDevice string `yaml:"hciDevice"`
	H4Socket  string `yaml:"h4Socket"`
	H4Uart    string `yaml:"h4Uart"`
	BaudRate  uint   `yaml:"baudRate" default:"1000000"`

	// H4TimeoutMs bounds each read and write on the H4 socket.
	H4TimeoutMs uint `yaml:"h4TimeoutMs" default:"1000"`
}

// hciDeviceID parses "hci0" or "0" into a device id.
func (t TransportConfig) hciDeviceID() (int, error) {
	id, err := strconv.Atoi(strings.TrimPrefix(t.HCIDevice, "hci"))
	if err != nil || id < 0 {
		return 0, errors.Errorf("invalid hciDevice %q", t.HCIDevice)
	}
	return id, nil
}

// DefaultConfig returns a Config holding only defaults.
func DefaultConfig() Config {
	var c Config
	defaults.SetDefaults(&c)
	return c
}

// ParseConfig decodes YAML into a Config and fills in defaults.
func ParseConfig(b []byte) (Config, error) {
	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return Config{}, errors.Wrap(err, "can't decode config")
	}
	defaults.SetDefaults(&c)

	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}

// LoadConfig reads a YAML config file.
func LoadConfig(path string) (Config, error) {
	b, err := ioutil.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "can't read config %s", path)
	}
	return ParseConfig(b)
}

// Validate checks the ranges of c.
func (c Config) Validate() error {
	switch {
	case c.RecvStateCount < 1 || c.RecvStateCount > 256:
		return errors.Errorf("invalid recvStateCount %v", c.RecvStateCount)
	case c.PASyncSkip > 0x01F3:
		return errors.Errorf("invalid paSyncSkip %v", c.PASyncSkip)
	case c.SyncTimeoutRatio < 1:
		return errors.Errorf("invalid syncTimeoutRatio %v", c.SyncTimeoutRatio)
	}

	n := 0
	if c.Transport.HCIDevice != "" {
		n++
	}
	if c.Transport.H4Socket != "" {
		n++
	}
	if c.Transport.H4Uart != "" {
		n++
	}
	if n > 1 {
		return errors.New("more than one transport configured")
	}
	if c.Transport.HCIDevice != "" {
		if _, err := c.Transport.hciDeviceID(); err != nil {
			return err
		}
	}
	return nil
}

// Options converts c into delegator options. The log level is applied to
// the default logger as a side effect.
func (c Config) Options() ([]Option, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.LogLevel != "" {
		if err := SetLogLevel(c.LogLevel); err != nil {
			return nil, errors.Wrap(err, "invalid logLevel")
		}
	}

	return []Option{
		OptRecvStateCount(c.RecvStateCount),
		OptPASyncSkip(c.PASyncSkip),
		OptSyncTimeoutRatio(c.SyncTimeoutRatio),
	}, nil
}

// DeviceOptions converts the transport section into controller options.
// With no transport configured the first available HCI device is used.
func (c Config) DeviceOptions() ([]HCIOption, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	t := c.Transport
	switch {
	case t.H4Socket != "":
		return []HCIOption{OptTransportH4Socket(t.H4Socket, time.Duration(t.H4TimeoutMs)*time.Millisecond)}, nil
	case t.H4Uart != "":
		return []HCIOption{OptTransportH4Uart(t.H4Uart, t.BaudRate)}, nil
	case t.HCIDevice != "":
		id, _ := t.hciDeviceID()
		return []HCIOption{OptTransportHCISocket(id)}, nil
	default:
		return []HCIOption{OptTransportHCISocket(-1)}, nil
	}
}

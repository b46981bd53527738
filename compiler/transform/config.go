package transform

import (
	"bytes"
	"io"
	"os"

	"gopkg.in/yaml.v3"
	"tlog.app/go/errors"
)

type (
	Config struct {
		Passes    []string `yaml:"passes"`
		MaxRounds int      `yaml:"max_rounds"`
		OnLimit   Policy   `yaml:"on_limit"`
		Verify    bool     `yaml:"verify"`
	}
)

func DefaultConfig() Config {
	return Config{
		Passes: []string{
			EmptyBlockEliminationName,
			UnreachableBlockEliminationName,
		},
		MaxRounds: DefaultMaxRounds,
		OnLimit:   Reject,
		Verify:    true,
	}
}

func LoadConfig(name string) (Config, error) {
	data, err := os.ReadFile(name)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}

	c, err := ParseConfig(data)
	if err != nil {
		return Config{}, errors.Wrap(err, "config %v", name)
	}

	return c, nil
}

// ParseConfig decodes a yaml pipeline description over the defaults.
// Unknown keys are rejected.
func ParseConfig(data []byte) (c Config, err error) {
	c = DefaultConfig()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	err = dec.Decode(&c)
	if errors.Is(err, io.EOF) {
		err = nil
	}
	if err != nil {
		return Config{}, errors.Wrap(err, "decode")
	}

	err = c.Validate()
	if err != nil {
		return Config{}, err
	}

	return c, nil
}

func (c Config) Validate() error {
	if c.MaxRounds <= 0 {
		return errors.New("max_rounds must be positive, got %d", c.MaxRounds)
	}

	if !c.OnLimit.Valid() {
		return errors.New("on_limit: unsupported policy %q", c.OnLimit)
	}

	for _, name := range c.Passes {
		if _, ok := registry[name]; !ok {
			return errors.Wrap(ErrUnknownPass, "%q", name)
		}
	}

	return nil
}

func (c Config) Driver() (*Driver, error) {
	err := c.Validate()
	if err != nil {
		return nil, err
	}

	d := &Driver{
		MaxRounds: c.MaxRounds,
		OnLimit:   c.OnLimit,
		Verify:    c.Verify,
	}

	for _, name := range c.Passes {
		p, err := Lookup(name)
		if err != nil {
			return nil, err
		}

		d.Passes = append(d.Passes, p)
	}

	return d, nil
}

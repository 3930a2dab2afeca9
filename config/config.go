// Package config holds duck driver settings read from a TOML file.
package config

import (
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"
	"tlog.app/go/errors"

	"github.com/slowlang/duck/compiler/obj"
)

type (
	Config struct {
		VM      VM      `toml:"vm"`
		Output  Output  `toml:"output"`
		Compile Compile `toml:"compile"`
		UI      UI      `toml:"ui"`
	}

	VM struct {
		MaxSteps int64 `toml:"max_steps"`
		Trace    bool  `toml:"trace"`
	}

	Output struct {
		Format string `toml:"format"`
		Dir    string `toml:"dir"`
	}

	Compile struct {
		Jobs int `toml:"jobs"`
	}

	UI struct {
		// Color is "auto", "always" or "never".
		Color string `toml:"color"`
	}
)

const DefaultFile = "duck.toml"

func Default() Config {
	return Config{
		VM:      VM{MaxSteps: 10_000_000},
		Output:  Output{Format: string(obj.Text)},
		Compile: Compile{Jobs: 4},
		UI:      UI{Color: "auto"},
	}
}

// Load reads path over the defaults.
// A missing file is not an error unless the path was given explicitly.
func Load(path string, explicit bool) (c Config, err error) {
	c = Default()

	if path == "" {
		path = DefaultFile
	}

	md, err := toml.DecodeFile(path, &c)
	if errors.Is(err, fs.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return c, errors.Wrap(err, "decode %v", path)
	}

	if u := md.Undecoded(); len(u) != 0 {
		return c, errors.New("%v: unknown keys: %v", path, u)
	}

	return c, c.validate()
}

func (c Config) validate() error {
	if _, err := obj.ParseFormat(c.Output.Format); err != nil {
		return errors.Wrap(err, "output.format")
	}

	if c.Compile.Jobs < 0 {
		return errors.New("compile.jobs: negative value %d", c.Compile.Jobs)
	}

	if c.VM.MaxSteps < 0 {
		return errors.New("vm.max_steps: negative value %d", c.VM.MaxSteps)
	}

	switch c.UI.Color {
	case "", "auto", "always", "never":
	default:
		return errors.New("ui.color: unknown mode %q", c.UI.Color)
	}

	return nil
}

// Write stores c as TOML.
func Write(path string, c Config) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "create")
	}

	defer func() {
		e := f.Close()
		if err == nil && e != nil {
			err = errors.Wrap(e, "close")
		}
	}()

	err = toml.NewEncoder(f).Encode(c)
	if err != nil {
		return errors.Wrap(err, "encode")
	}

	return nil
}

package config

import (
	"fmt"
	"io"
	"os"
	"os/user"
	"path"

	"gopkg.in/yaml.v2"
)

const (
	configDir  string = ".unloop"
	configFile string = "config.yml"
)

// Config defines all configuration options available to be set through the config file.
type Config struct {
	// MatchPolicy selects what happens when several processes match the
	// name entered at the prompt: "first" picks the lowest pid, "unique"
	// refuses to choose.
	MatchPolicy string `yaml:"match-policy"`

	// If Disassemble is true the instruction at PC is decoded and printed
	// before asking for a strategy.
	Disassemble *bool `yaml:"disassemble,omitempty"`

	// ShowOpaqueRegisters prints the registers the strategies never touch
	// together with FP, LR, SP and PC.
	ShowOpaqueRegisters bool `yaml:"show-opaque-registers"`

	// Color enables ANSI colors when standard output is a terminal.
	Color *bool `yaml:"color,omitempty"`
}

// DisassembleEnabled reports whether the instruction at PC should be shown.
func (c *Config) DisassembleEnabled() bool {
	return c.Disassemble == nil || *c.Disassemble
}

// ColorEnabled reports whether colored output is allowed.
func (c *Config) ColorEnabled() bool {
	return c.Color == nil || *c.Color
}

// LoadConfig attempts to populate a Config object from the config.yml file.
func LoadConfig() *Config {
	err := createConfigPath()
	if err != nil {
		fmt.Printf("Could not create config directory: %v.", err)
		return &Config{}
	}
	fullConfigFile, err := GetConfigFilePath(configFile)
	if err != nil {
		fmt.Printf("Unable to get config file path: %v.", err)
		return &Config{}
	}
	c, err := loadConfigFile(fullConfigFile)
	if err != nil {
		fmt.Printf("%v.\n", err)
		return &Config{}
	}
	return c
}

// loadConfigFile reads the configuration at fullConfigFile, creating it
// with the default contents if it does not exist.
func loadConfigFile(fullConfigFile string) (*Config, error) {
	f, err := os.Open(fullConfigFile)
	if err != nil {
		f, err = createDefaultConfig(fullConfigFile)
		if err != nil {
			return nil, fmt.Errorf("error creating default config file: %v", err)
		}
	}
	defer func() {
		err := f.Close()
		if err != nil {
			fmt.Printf("Closing config file failed: %v.", err)
		}
	}()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("unable to read config data: %v", err)
	}

	var c Config
	err = yaml.Unmarshal(data, &c)
	if err != nil {
		return nil, fmt.Errorf("unable to decode config file: %v", err)
	}
	return &c, nil
}

func createDefaultConfig(path string) (*os.File, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("unable to create config file: %v", err)
	}
	err = writeDefaultConfig(f)
	if err != nil {
		return nil, fmt.Errorf("unable to write default configuration: %v", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return f, nil
}

func writeDefaultConfig(f *os.File) error {
	_, err := f.WriteString(
		`# Configuration file for unloop.

# This is the default configuration file. Available options are provided, but disabled.
# Delete the leading hash mark to enable an item.

# What to do when more than one running process matches the name entered at
# the prompt: "first" attaches to the one with the lowest pid, "unique"
# refuses and lists the candidates.
# match-policy: first

# Uncomment the following line to stop decoding the instruction at PC.
# disassemble: false

# Uncomment the following line to also print X0-X28 and PSTATE.
# show-opaque-registers: true

# Uncomment the following line to disable colored output.
# color: false
`)
	return err
}

// createConfigPath creates the directory structure at which all config files are saved.
func createConfigPath() error {
	path, err := GetConfigFilePath("")
	if err != nil {
		return err
	}
	return os.MkdirAll(path, 0700)
}

// GetConfigFilePath gets the full path to the given config file name.
func GetConfigFilePath(file string) (string, error) {
	userHomeDir, err := os.UserHomeDir()
	if err != nil {
		userHomeDir = "."
		if usr, err := user.Current(); err == nil {
			userHomeDir = usr.HomeDir
		}
	}
	return path.Join(userHomeDir, configDir, file), nil
}

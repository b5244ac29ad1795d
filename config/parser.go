// Package config builds the configuration of a command from flags,
// environment variables and an optional configuration file.
package config

import (
	"os"
	"strings"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrAlreadyParsed is returned when parsing the flags of a Parser twice
var ErrAlreadyParsed = errors.New("flags already parsed")

// ErrParseFlags is returned when the command line cannot be parsed
type ErrParseFlags struct {
	Cause error
}

func (e ErrParseFlags) Error() string {
	return "failed to parse flags: " + e.Cause.Error()
}

func (e ErrParseFlags) Unwrap() error {
	return e.Cause
}

// Binder binds a part of the configuration to the flags of a command
// and reads it back once the flags have been parsed
type Binder interface {
	// Bind declares the flags of the binder in cmd
	Bind(v *viper.Viper, cmd *cobra.Command) error

	// Configure reads the values of the binder from v
	Configure(v *viper.Viper) error
}

// Config describes a command and the binders that make
// up its configuration
type Config interface {
	Use() string
	EnvPrefix() string
	Binders() []Binder
}

// Parser reads the configuration of a command. Values are taken, in
// order of precedence, from the flags, the environment, the
// configuration file and the defaults of the flags
type Parser struct {
	Config Config

	file *ConfigFile

	cmd *cobra.Command
	v   *viper.Viper
}

// Parse parses the arguments of the process
func (p *Parser) Parse() error {
	return p.ParseArgs(os.Args[1:])
}

// ParseArgs parses args and configures all the binders
func (p *Parser) ParseArgs(args []string) error {
	flags := p.Flags()
	if flags.Parsed() {
		return ErrAlreadyParsed
	}

	if err := flags.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return err
		}
		return ErrParseFlags{err}
	}

	return p.Configure()
}

// Configure runs the binders once the flags of the command have been
// parsed, either by ParseArgs or by cobra when running the command
func (p *Parser) Configure() error {
	// keep file first so that any parameters read from the file are used
	// as defaults for the other flags
	var binders []Binder
	binders = append(binders, p.file)
	binders = append(binders, p.Config.Binders()...)

	for _, c := range binders {
		if err := c.Configure(p.v); err != nil {
			return err
		}
	}

	return nil
}

// Command returns the cobra command that owns the flags
func (p *Parser) Command() *cobra.Command {
	return p.cmd
}

// Viper returns the viper instance that holds the values
func (p *Parser) Viper() *viper.Viper {
	return p.v
}

// Flags returns the flags declared by the binders
func (p *Parser) Flags() *pflag.FlagSet {
	return p.cmd.PersistentFlags()
}

func (p *Parser) Usage() error {
	return p.cmd.Usage()
}

// Generate creates a Parser for config with a new command
func Generate(config Config) (*Parser, error) {
	return GenerateForCommand(&cobra.Command{Use: config.Use()}, config)
}

// GenerateForCommand creates a Parser for config that declares its
// flags in cmd
func GenerateForCommand(cmd *cobra.Command, config Config) (*Parser, error) {
	v := viper.New()
	// all environment variables start with the prefix of the config
	// and are set by replacing `.` and `-` to _.
	v.SetEnvPrefix(config.EnvPrefix())
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	file := ConfigFile{}
	var binders []Binder
	binders = append(binders, &file)
	binders = append(binders, config.Binders()...)

	for _, c := range binders {
		if err := c.Bind(v, cmd); err != nil {
			return nil, errors.Wrap(err, "failed to bind flags")
		}
	}

	if err := v.BindPFlags(cmd.PersistentFlags()); err != nil {
		return nil, errors.Wrap(err, "failed to bind flags")
	}

	return &Parser{file: &file, Config: config, cmd: cmd, v: v}, nil
}

// ConfigFile reads the configuration file named by the --config flag.
// The format is chosen from the extension of the file
type ConfigFile struct {
	Path string
}

func (f *ConfigFile) Bind(v *viper.Viper, cmd *cobra.Command) error {
	cmd.PersistentFlags().String("config", "", "path to a yaml, json or toml configuration file")
	return nil
}

func (f *ConfigFile) Configure(v *viper.Viper) error {
	f.Path = v.GetString("config")
	if f.Path == "" {
		return nil
	}

	v.SetConfigFile(f.Path)
	if err := v.ReadInConfig(); err != nil {
		return errors.Wrapf(err, "failed to read configuration file %s", f.Path)
	}
	return nil
}

package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/AlecAivazis/survey/v2"
	"github.com/AlecAivazis/survey/v2/terminal"
	"github.com/spf13/cobra"

	"github.com/atomicdeploy/tablecrud/pkg/config"
)

const defaultConfigFile = "tablecrud.yaml"

// initAnswers holds what the init prompts collect
type initAnswers struct {
	Driver   string
	Host     string `survey:"host"`
	Port     string `survey:"port"`
	User     string `survey:"user"`
	Password string `survey:"password"`
	Name     string `survey:"name"`
	Addr     string
	Title    string
}

func runInit(cmd *cobra.Command, args []string) {
	path := defaultConfigFile
	switch {
	case len(args) == 1:
		path = args[0]
	case configFile != "":
		path = configFile
	}

	if _, err := os.Stat(path); err == nil {
		overwrite := false
		prompt := &survey.Confirm{Message: fmt.Sprintf("%s exists. Overwrite?", path)}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			exitOnPromptError(err)
		}
		if !overwrite {
			warningColor.Println("⚠️  Nothing written")
			return
		}
	}

	answers, err := askInit()
	if err != nil {
		exitOnPromptError(err)
	}

	cfg, err := answers.toConfig()
	if err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Save(path); err != nil {
		errorColor.Printf("❌ %v\n", err)
		os.Exit(1)
	}

	successColor.Printf("✅ Configuration written to %s\n", path)
	infoColor.Printf("💡 Start the server with: tablecrud serve --config %s\n", path)
}

func askInit() (initAnswers, error) {
	defaults := config.Defaults()
	a := initAnswers{}

	driver := &survey.Select{
		Message: "Database driver:",
		Options: []string{config.DriverMySQL, config.DriverPostgres, config.DriverSQLite},
		Default: defaults.Database.Driver,
	}
	if err := survey.AskOne(driver, &a.Driver); err != nil {
		return a, err
	}

	if a.Driver == config.DriverSQLite {
		name := &survey.Input{Message: "Database file:", Default: "tablecrud.db"}
		if err := survey.AskOne(name, &a.Name, survey.WithValidator(survey.Required)); err != nil {
			return a, err
		}
	} else {
		qs := []*survey.Question{
			{
				Name:   "host",
				Prompt: &survey.Input{Message: "Database host:", Default: defaults.Database.Host},
			},
			{
				Name:     "port",
				Prompt:   &survey.Input{Message: "Database port (empty for the driver default):"},
				Validate: validatePort,
			},
			{
				Name:     "user",
				Prompt:   &survey.Input{Message: "Database user:"},
				Validate: survey.Required,
			},
			{
				Name:   "password",
				Prompt: &survey.Password{Message: "Database password:"},
			},
			{
				Name:     "name",
				Prompt:   &survey.Input{Message: "Database name:"},
				Validate: survey.Required,
			},
		}
		if err := survey.Ask(qs, &a); err != nil {
			return a, err
		}
	}

	addr := &survey.Input{Message: "Listen address:", Default: defaults.Server.Addr}
	if err := survey.AskOne(addr, &a.Addr, survey.WithValidator(survey.Required)); err != nil {
		return a, err
	}
	title := &survey.Input{Message: "Page title:", Default: defaults.UI.Title}
	if err := survey.AskOne(title, &a.Title); err != nil {
		return a, err
	}
	return a, nil
}

func validatePort(ans interface{}) error {
	s, _ := ans.(string)
	if s == "" {
		return nil
	}
	port, err := strconv.Atoi(s)
	if err != nil || port < 1 || port > 65535 {
		return errors.New("port must be a number between 1 and 65535")
	}
	return nil
}

// toConfig turns the answers into a validated configuration
func (a initAnswers) toConfig() (*config.Config, error) {
	cfg := config.Defaults()
	cfg.Database.Driver = a.Driver
	cfg.Database.Name = a.Name
	if a.Driver != config.DriverSQLite {
		cfg.Database.Host = a.Host
		cfg.Database.User = a.User
		cfg.Database.Password = a.Password
		if a.Port != "" {
			port, err := strconv.Atoi(a.Port)
			if err != nil {
				return nil, fmt.Errorf("invalid port %q: %w", a.Port, err)
			}
			cfg.Database.Port = port
		}
	}
	if a.Addr != "" {
		cfg.Server.Addr = a.Addr
	}
	if a.Title != "" {
		cfg.UI.Title = a.Title
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func exitOnPromptError(err error) {
	if errors.Is(err, terminal.InterruptErr) {
		warningColor.Println("\n⚠️  Cancelled")
		os.Exit(130)
	}
	errorColor.Printf("❌ Prompt failed: %v\n", err)
	os.Exit(1)
}

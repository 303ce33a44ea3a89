package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/manifoldco/promptui"
)

// RunWizard runs an interactive configuration wizard and returns the
// resulting Config. It also saves the config to path.
func RunWizard(path string) (*Config, error) {
	fmt.Println("Welcome to hydroforge! Let's configure your portal.")
	fmt.Println()

	cfg := DefaultConfig()

	// 1. Port.
	portPrompt := promptui.Prompt{
		Label:   "Port to listen on",
		Default: strconv.Itoa(cfg.Port),
		Validate: func(s string) error {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 || n > 65535 {
				return fmt.Errorf("enter a port between 0 and 65535")
			}
			return nil
		},
	}
	portStr, err := portPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("port: %w", err)
	}
	cfg.Port, _ = strconv.Atoi(portStr)

	// 2. Data directory.
	dataPrompt := promptui.Prompt{
		Label:   "Data directory for the settings database",
		Default: cfg.DataDir,
	}
	cfg.DataDir, err = dataPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("data dir: %w", err)
	}

	// 3. Secondary sources.
	sourcePrompt := promptui.Select{
		Label: "Catalog sources",
		Items: []string{
			"gn-math + 3kh0 — primary manifest plus the 3kh0 project listing",
			"gn-math only   — skip the GitHub listing (faster, no API rate limit)",
		},
	}
	sourceIdx, _, err := sourcePrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("source selection: %w", err)
	}
	if sourceIdx == 1 {
		var primaryOnly []Source
		for _, s := range cfg.Sources {
			if s.Primary {
				primaryOnly = append(primaryOnly, s)
			}
		}
		cfg.Sources = primaryOnly
	}

	// 4. Extra trusted content hosts.
	trustPrompt := promptui.Prompt{
		Label:   "Extra trusted content hosts (comma-separated globs, leave blank for defaults)",
		Default: "",
	}
	trustStr, err := trustPrompt.Run()
	if err != nil {
		return nil, fmt.Errorf("trusted hosts: %w", err)
	}
	if trustStr != "" {
		cfg.Loader.TrustedHosts = append(cfg.Loader.TrustedHosts, splitAndTrim(trustStr)...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	if err := cfg.Save(path); err != nil {
		return nil, fmt.Errorf("saving config: %w", err)
	}

	fmt.Printf("\nConfiguration saved to %s\n", path)
	return cfg, nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	var result []string
	for _, part := range strings.Split(s, ",") {
		if token := strings.TrimSpace(part); token != "" {
			result = append(result, token)
		}
	}
	return result
}

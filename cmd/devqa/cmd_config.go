package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/pmanickam80/device-qa-inspection/internal/config"
)

// cmdConfig manages the local configuration
func cmdConfig(args []string) error {
	if len(args) < 1 {
		fmt.Println(`Config commands:

  devqa config show      Show current configuration
  devqa config init      Write a default config file
  devqa config set-key   Store the analysis service API key`)
		return nil
	}

	switch args[0] {
	case "show":
		return cmdConfigShow()
	case "init":
		return cmdConfigInit()
	case "set-key":
		return cmdConfigSetKey()
	default:
		return fmt.Errorf("unknown config command: %s", args[0])
	}
}

func cmdConfigShow() error {
	cfg, err := config.LoadLocalConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	fmt.Print(string(data))
	if cfg.Live.APIKey != "" {
		fmt.Println("\nAPI key: configured")
	} else {
		fmt.Println("\nAPI key: not set (run 'devqa config set-key')")
	}
	return nil
}

func cmdConfigInit() error {
	dir, err := config.DevQADir()
	if err != nil {
		return err
	}

	if _, err := os.Stat(dir + "/config.yaml"); err == nil {
		return fmt.Errorf("config already exists at %s/config.yaml", dir)
	}

	if err := config.SaveLocalConfig(config.DefaultLocalConfig()); err != nil {
		return fmt.Errorf("write config: %w", err)
	}

	fmt.Printf("Wrote default configuration to %s/config.yaml\n", dir)
	return nil
}

func cmdConfigSetKey() error {
	fmt.Print("API key: ")
	reader := bufio.NewReader(os.Stdin)
	key, err := reader.ReadString('\n')
	if err != nil {
		return fmt.Errorf("read key: %w", err)
	}
	key = strings.TrimSpace(key)
	if key == "" {
		return fmt.Errorf("empty API key")
	}

	if err := config.SaveSecrets(key); err != nil {
		return fmt.Errorf("save secrets: %w", err)
	}

	fmt.Println("API key saved.")
	return nil
}

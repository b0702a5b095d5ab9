package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/dealbot/internal/config"
)

func configCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration commands",
	}
	cmd.AddCommand(configCheckCmd())
	cmd.AddCommand(configShowCmd())
	return cmd
}

func configCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate configuration and knowledge files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fmt.Printf("Config:  %s\n", resolveConfigPath())
			if err := cfg.Validate(); err != nil {
				var me *config.MissingError
				if errors.As(err, &me) {
					for _, k := range me.Keys {
						fmt.Printf("  missing: %s\n", k)
					}
				}
				return err
			}

			for _, f := range []struct{ label, path string }{
				{"Prompt", cfg.Knowledge.PromptFile},
				{"Offers", cfg.Knowledge.OffersFile},
			} {
				status := "ok"
				if _, err := os.Stat(config.ExpandHome(f.path)); err != nil {
					status = "not found (continuing without it)"
				}
				fmt.Printf("%-8s %s: %s\n", f.label+":", f.path, status)
			}
			fmt.Println("Configuration OK.")
			return nil
		},
	}
}

func configShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration with secrets masked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			data, err := json.MarshalIndent(cfg.MaskedCopy(), "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

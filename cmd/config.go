package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/andresmejia3/emojicam/internal/config"
	"github.com/andresmejia3/emojicam/internal/utils"
	"github.com/spf13/cobra"
)

var (
	configWrite bool
	configForce bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective overlay settings",
	Long:  "Prints the settings file merged onto the defaults. With --write, saves the defaults to the --config path.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		if configWrite {
			if err := writeDefaultConfig(configPath, configForce); err != nil {
				utils.ShowError("Failed to write settings file", err, nil)
				return err
			}
			fmt.Fprintf(os.Stderr, "📝 Wrote defaults to %s\n", configPath)
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			utils.ShowError("Failed to load settings", err, nil)
			return err
		}
		return printConfig(os.Stdout, cfg)
	},
}

func init() {
	configCmd.Flags().BoolVar(&configWrite, "write", false, "Write the default settings to the --config path")
	configCmd.Flags().BoolVar(&configForce, "force", false, "Overwrite an existing settings file when writing")
	rootCmd.AddCommand(configCmd)
}

func printConfig(w io.Writer, cfg config.Overlay) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(cfg)
}

func writeDefaultConfig(path string, force bool) error {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if !force {
		flags |= os.O_EXCL
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}
	if err != nil {
		return err
	}
	if err := printConfig(f, config.Defaults()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

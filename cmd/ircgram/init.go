package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/flemzord/ircgram/internal/config"
)

// initCmd walks through the minimum viable configuration interactively and
// writes it out as YAML.
func initCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Create a configuration file interactively",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			path := "ircgram.yaml"
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil {
				return fmt.Errorf("%s already exists, refusing to overwrite", path)
			}

			var (
				server    string
				nick      string
				tls       = true
				token     string
				ircChan   string
				tgGroup   string
				parseMode string
			)

			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("IRC server").
						Placeholder("irc.libera.chat").
						Value(&server).
						Validate(required("server")),
					huh.NewInput().
						Title("IRC nick").
						Placeholder("ircgram").
						Value(&nick),
					huh.NewConfirm().
						Title("Connect with TLS?").
						Value(&tls),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("Telegram bot token").
						Description("From @BotFather. Stored as ${IRCGRAM_TG_TOKEN} reference.").
						EchoMode(huh.EchoModePassword).
						Value(&token).
						Validate(required("token")),
				),
				huh.NewGroup(
					huh.NewInput().
						Title("IRC channel").
						Placeholder("#mychannel").
						Value(&ircChan).
						Validate(required("channel")),
					huh.NewInput().
						Title("Telegram group title").
						Description("Must match the group name exactly.").
						Value(&tgGroup).
						Validate(required("group")),
					huh.NewSelect[string]().
						Title("Telegram message formatting").
						Options(
							huh.NewOption("Plain text", "plain"),
							huh.NewOption("Markdown", "markdown"),
							huh.NewOption("HTML", "html"),
						).
						Value(&parseMode),
				),
			)
			if err := form.Run(); err != nil {
				return err
			}

			cfg := map[string]any{
				"irc": map[string]any{
					"server": server,
					"tls":    tls,
					"nick":   nick,
				},
				"telegram": map[string]any{
					// The token lives in the environment, not on disk.
					"token": "${IRCGRAM_TG_TOKEN}",
				},
				"format": map[string]any{
					"parse_mode": parseMode,
				},
				"store": map[string]any{
					"dir": defaultStoreDir(),
				},
				"channels": []map[string]any{{
					"irc_chan": ircChan,
					"tg_group": tgGroup,
				}},
			}

			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			if err := os.WriteFile(path, out, 0o600); err != nil {
				return err
			}

			fmt.Printf("Wrote %s\n", path)
			fmt.Printf("Export the bot token (%s) before starting:\n\n", mask(token))
			fmt.Printf("  export IRCGRAM_TG_TOKEN=<your token>\n\n")
			fmt.Printf("Then validate and start:\n\n")
			fmt.Printf("  ircgram config check %s\n", path)
			fmt.Printf("  ircgram start --config %s\n", path)

			// Sanity check the file we just wrote.
			os.Setenv("IRCGRAM_TG_TOKEN", token)
			loaded, err := config.Load(path)
			if err != nil {
				return err
			}
			return config.Validate(loaded)
		},
	}
	return cmd
}

func required(field string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

func mask(token string) string {
	if len(token) <= 8 {
		return "<your token>"
	}
	return token[:4] + "…" + token[len(token)-4:]
}

func defaultStoreDir() string {
	if dir, ok := os.LookupEnv("XDG_DATA_HOME"); ok {
		return filepath.Join(dir, "ircgram")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "ircgram")
}

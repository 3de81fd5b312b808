package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/services"
	"github.com/urfave/cli/v2"
)

// KeysCommand returns the keys command for managing session signing keys
func KeysCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "keys",
		Usage: "Manage session signing keys",
		Subcommands: []*cli.Command{
			{
				Name:  "generate",
				Usage: "Generate signing keys",
				Description: `Generate random 256-bit signing keys.

Examples:
  # Keys for SESSION_KEYS in local development
  campus-portal keys generate --count 2

  # Initial Secrets Manager value; the rotator maintains it afterwards
  campus-portal keys generate --json`,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of keys to generate",
						Value: 1,
					},
					&cli.BoolFlag{
						Name:  "json",
						Usage: "Print the Secrets Manager versions document instead of SESSION_KEYS",
					},
				},
				Action: func(c *cli.Context) error {
					return generateKeys(c.App.Writer, c.Int("count"), c.Bool("json"), time.Now())
				},
			},
		},
	}
}

func generateKeys(w io.Writer, count int, asJSON bool, now time.Time) error {
	if count < 1 || count > services.DefaultKeyVersions {
		return fmt.Errorf("count must be between 1 and %d", services.DefaultKeyVersions)
	}

	versions := make([]services.SecretVersion, 0, count)
	for i := 0; i < count; i++ {
		version, err := services.NewSessionKeyVersion(now)
		if err != nil {
			return err
		}
		versions = append(versions, version)
	}

	if asJSON {
		data, err := json.MarshalIndent(versions, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal versions: %w", err)
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	secrets := make([]string, 0, len(versions))
	for _, v := range versions {
		secrets = append(secrets, v.Secret)
	}
	_, err := fmt.Fprintf(w, "SESSION_KEYS=%s\n", strings.Join(secrets, ","))
	return err
}

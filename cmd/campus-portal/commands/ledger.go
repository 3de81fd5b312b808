package commands

import (
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/dao/statedao"
	"github.com/urfave/cli/v2"
)

// LedgerCommand returns the ledger command for the state replay table
func LedgerCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:  "ledger",
		Usage: "Manage the DynamoDB state replay ledger",
		Subcommands: []*cli.Command{
			{
				Name:  "create-table",
				Usage: "Create the ledger table if it does not exist",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "table",
						Aliases:  []string{"t"},
						Usage:    "DynamoDB table name",
						Required: true,
						EnvVars:  []string{"STATE_LEDGER_TABLE"},
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := config.LoadDefaultConfig(c.Context)
					if err != nil {
						return err
					}

					tableName := c.String("table")
					dao := statedao.New(dynamodb.NewFromConfig(cfg), tableName)
					if err := dao.CreateTable(c.Context); err != nil {
						return err
					}

					logger.Info().
						Str("table", tableName).
						Msg("State ledger table ready; enable TTL on the ttl attribute")
					return nil
				},
			},
		},
	}
}

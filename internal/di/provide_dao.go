package di

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/campus-portal/internal/auth"
	"github.com/savaki/campus-portal/internal/dao/statedao"
	"github.com/savaki/campus-portal/internal/services"
)

// ProvideStateLedger returns the DynamoDB replay ledger, or nil when no
// table is configured.
func ProvideStateLedger(ctx context.Context, client *dynamodb.Client, config *services.Config) auth.StateLedger {
	if config.StateLedgerTable == "" {
		return nil
	}
	zerolog.Ctx(ctx).Info().Str("table", config.StateLedgerTable).Msg("State replay ledger enabled")
	return statedao.New(client, config.StateLedgerTable)
}

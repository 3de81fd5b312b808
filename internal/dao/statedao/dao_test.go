package statedao

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	apperrors "github.com/savaki/campus-portal/internal/errors"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
)

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint("http://localhost:8000"),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("states-test-%v", ksuid.New().String())
		table     = db.MustTable(tableName, Record{})
		dao       = New(client, tableName)
	)

	err = table.CreateTableIfNotExists(ctx)
	assert.NoError(t, err)

	return ctx, Data{DAO: dao}, func() {
		_ = table.DeleteTableIfExists(ctx)
	}
}

func TestDAO(t *testing.T) {
	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Record_First", func(t *testing.T) {
			state := ksuid.New().String()

			err := dao.Record(ctx, state, 5*time.Minute)
			assert.NoError(t, err)

			record, err := dao.Find(ctx, state)
			assert.NoError(t, err)
			assert.NotNil(t, record)
			assert.Equal(t, NewPK(state), record.PK)
			assert.NotZero(t, record.RecordedAt)
			assert.Greater(t, record.TTL, record.RecordedAt) // TTL should be in future
		})

		t.Run("Record_Replay", func(t *testing.T) {
			state := ksuid.New().String()

			assert.NoError(t, dao.Record(ctx, state, 5*time.Minute))

			err := dao.Record(ctx, state, 5*time.Minute)
			assert.ErrorIs(t, err, apperrors.ErrStateReplayed)
		})

		t.Run("Record_AfterExpiry", func(t *testing.T) {
			state := ksuid.New().String()

			past := time.Now().Add(-time.Hour)
			dao.now = func() time.Time { return past }
			assert.NoError(t, dao.Record(ctx, state, 5*time.Minute))
			dao.now = time.Now

			assert.NoError(t, dao.Record(ctx, state, 5*time.Minute))
		})

		t.Run("Find_NotFound", func(t *testing.T) {
			record, err := dao.Find(ctx, "never-recorded")
			assert.NoError(t, err)
			assert.Nil(t, record)
		})

		t.Run("Delete", func(t *testing.T) {
			state := ksuid.New().String()
			assert.NoError(t, dao.Record(ctx, state, 5*time.Minute))
			assert.NoError(t, dao.Delete(ctx, state))

			record, err := dao.Find(ctx, state)
			assert.NoError(t, err)
			assert.Nil(t, record)
		})
	})
}

func TestNewPK(t *testing.T) {
	pk := NewPK("abc")
	assert.True(t, strings.HasPrefix(pk.String(), "state/"))
	assert.NotContains(t, pk.String(), "abc")
	assert.Len(t, pk.String(), len("state/")+64)
	assert.Equal(t, pk, NewPK("abc"))
	assert.NotEqual(t, pk, NewPK("abd"))
}

package compiledao

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/ddb/v2/ddbtest"
	"github.com/segmentio/ksuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPK(t *testing.T) {
	assert.Equal(t, PK("orders-dev/create"), NewPK("orders-dev", "create"))
	assert.Equal(t, "sc-packager-dev-history", TableName("dev"))
}

func TestParsePK(t *testing.T) {
	tests := []struct {
		name         string
		pk           PK
		wantStack    string
		wantFunction string
		wantErr      bool
	}{
		{name: "valid", pk: "orders-dev/create", wantStack: "orders-dev", wantFunction: "create"},
		{name: "missing function", pk: "orders-dev/", wantErr: true},
		{name: "function key with separator", pk: "orders-dev/api/create", wantStack: "orders-dev", wantFunction: "api/create"},
		{name: "missing stack", pk: "/create", wantErr: true},
		{name: "no separator", pk: "orders", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stack, function, err := ParsePK(tt.pk)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantStack, stack)
			assert.Equal(t, tt.wantFunction, function)
		})
	}
}

func TestParseID(t *testing.T) {
	sk := ksuid.New().String()
	id := NewID(NewPK("orders-dev", "create"), sk)

	pk, gotSK, err := ParseID(id)
	require.NoError(t, err)
	assert.Equal(t, PK("orders-dev/create"), pk)
	assert.Equal(t, sk, gotSK)

	_, _, err = ParseID("orders-dev/create")
	assert.Error(t, err)

	_, _, err = ParseID(ID("orders-dev:" + sk))
	assert.Error(t, err)

	_, _, err = ParseID("orders-dev/create:")
	assert.Error(t, err)
}

func TestParseIDRoundTrip(t *testing.T) {
	sk := ksuid.New().String()
	for _, function := range []string{"create", "api/create", "ns:create"} {
		pk := NewPK("orders-dev", function)

		gotPK, gotSK, err := ParseID(NewID(pk, sk))
		require.NoError(t, err, function)
		assert.Equal(t, pk, gotPK)
		assert.Equal(t, sk, gotSK)

		stack, gotFunction, err := ParsePK(gotPK)
		require.NoError(t, err, function)
		assert.Equal(t, "orders-dev", stack)
		assert.Equal(t, function, gotFunction)
	}
}

func TestIDs(t *testing.T) {
	records := []Record{
		{PK: "s/a", SK: "1"},
		{PK: "s/b", SK: "2"},
	}
	assert.Equal(t, []ID{"s/a:1", "s/b:2"}, IDs(records))
}

type Data struct {
	DAO *DAO
}

func setup(t *testing.T) (ctx context.Context, data Data, cleanup func()) {
	ctx = context.Background()

	cfg, err := config.LoadDefaultConfig(
		ctx,
		config.WithRegion("us-west-2"),
		config.WithBaseEndpoint(os.Getenv("DYNAMODB_ENDPOINT")),
		config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("blah", "blah", ""),
		),
	)
	assert.NoError(t, err)

	var (
		client    = dynamodb.NewFromConfig(cfg)
		db        = ddb.New(client)
		tableName = fmt.Sprintf("history-test-%v", ksuid.New().String())
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
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	if os.Getenv("DYNAMODB_ENDPOINT") == "" {
		t.Skip("DYNAMODB_ENDPOINT not set, skipping DynamoDB Local test")
	}

	ddbtest.WithTable[Data](t, setup, func(t *testing.T, ctx context.Context, data Data) {
		dao := data.DAO

		t.Run("Create_and_Find", func(t *testing.T) {
			record, err := dao.Create(ctx, CreateInput{
				Stack:         "orders-dev",
				Function:      "create",
				FunctionName:  "orders-dev-create",
				Digest:        "h1",
				Branch:        "primary",
				Slot:          "primary",
				OutputKey:     "LambdaVersionHash",
				FirstDeploy:   true,
				DigestChanged: true,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, record.SK)
			assert.NotZero(t, record.CreatedAt)

			found, err := dao.Find(ctx, record.GetID())
			require.NoError(t, err)
			assert.Equal(t, record, found)
		})

		t.Run("Create_RequiresKeys", func(t *testing.T) {
			_, err := dao.Create(ctx, CreateInput{Stack: "orders-dev"})
			assert.Error(t, err)
		})

		t.Run("Create_RejectsStackSeparator", func(t *testing.T) {
			_, err := dao.Create(ctx, CreateInput{Stack: "orders/dev", Function: "create"})
			assert.Error(t, err)
		})

		t.Run("Find_FunctionKeyWithSeparator", func(t *testing.T) {
			record, err := dao.Create(ctx, CreateInput{Stack: "orders-dev", Function: "api/create", Digest: "h1"})
			require.NoError(t, err)

			found, err := dao.Find(ctx, record.GetID())
			require.NoError(t, err)
			assert.Equal(t, "api/create", found.Function)

			require.NoError(t, dao.Delete(ctx, record.GetID()))
		})

		t.Run("Latest", func(t *testing.T) {
			pk := NewPK("latest-dev", "fn")
			for _, digest := range []string{"d1", "d2", "d3"} {
				_, err := dao.Create(ctx, CreateInput{Stack: "latest-dev", Function: "fn", Digest: digest})
				require.NoError(t, err)
			}

			records, err := dao.Query(ctx, pk)
			require.NoError(t, err)
			assert.Len(t, records, 3)

			latest, err := dao.Latest(ctx, pk)
			require.NoError(t, err)
			require.NotNil(t, latest)
			assert.Equal(t, records[0], *latest)
		})

		t.Run("Latest_Empty", func(t *testing.T) {
			latest, err := dao.Latest(ctx, NewPK("empty-dev", "fn"))
			require.NoError(t, err)
			assert.Nil(t, latest)
		})

		t.Run("Delete", func(t *testing.T) {
			record, err := dao.Create(ctx, CreateInput{Stack: "delete-dev", Function: "fn", Digest: "d"})
			require.NoError(t, err)

			require.NoError(t, dao.Delete(ctx, record.GetID()))

			_, err = dao.Find(ctx, record.GetID())
			assert.Error(t, err)
		})
	})
}

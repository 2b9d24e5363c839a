package di

import (
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/services"
)

// ProvideCompileDAO returns the compile history DAO, or nil when no history
// table is configured.
func ProvideCompileDAO(config *services.Config, client *dynamodb.Client) *compiledao.DAO {
	if config.HistoryTable == "" {
		return nil
	}
	return compiledao.New(client, config.HistoryTable)
}

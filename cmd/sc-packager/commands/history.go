package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/rs/zerolog"
	"github.com/savaki/sc-packager/internal/dao/compiledao"
	"github.com/savaki/sc-packager/internal/di"
	"github.com/savaki/sc-packager/internal/services"
	"github.com/urfave/cli/v2"
)

var historyFlags = []cli.Flag{
	configFlag,
	stageFlag,
	stackNameFlag,
	disableSSMFlag,
	jsonFlag,
	&cli.StringFlag{
		Name:    "function",
		Aliases: []string{"f"},
		Usage:   "Function key",
	},
	&cli.StringFlag{
		Name:    "table",
		Usage:   "History table name",
		EnvVars: []string{"HISTORY_TABLE"},
	},
	&cli.IntFlag{
		Name:    "limit",
		Aliases: []string{"n"},
		Usage:   "Maximum number of records to show",
		Value:   10,
	},
	&cli.BoolFlag{
		Name:  "latest",
		Usage: "Show only the most recent decision",
	},
	&cli.StringFlag{
		Name:  "delete",
		Usage: "Delete the record with this id ({stack}/{function}:{ksuid})",
	},
}

// HistoryCommand returns the history command which lists recorded compile decisions
func HistoryCommand(logger *zerolog.Logger) *cli.Command {
	return &cli.Command{
		Name:    "history",
		Aliases: []string{"h"},
		Usage:   "List recorded compile decisions for a function",
		Description: `List the toggle decisions recorded by package for one function, newest first.

The history table is taken from --table, then the history-table parameter,
then sc-packager-<stage>-history.

Examples:
  sc-packager history --stage dev --function create
  sc-packager history --stack-name orders-prd --function create --latest --json
  sc-packager history --stack-name orders-prd --delete orders-prd/create:2N5Vj7mJ3bXjKQ0ZfH1S7c3yL9d`,
		Flags:  historyFlags,
		Action: historyAction,
	}
}

// historyStore is the subset of compiledao.DAO used by the history command
type historyStore interface {
	Query(ctx context.Context, pk compiledao.PK) ([]compiledao.Record, error)
	Latest(ctx context.Context, pk compiledao.PK) (*compiledao.Record, error)
	Find(ctx context.Context, id compiledao.ID) (compiledao.Record, error)
	Delete(ctx context.Context, id compiledao.ID) error
}

type historyEntry struct {
	ID compiledao.ID `json:"id"`
	compiledao.Record
}

func historyAction(c *cli.Context) error {
	stackName, stage, err := resolveTarget(c)
	if err != nil {
		return err
	}

	container, err := newContainer(c, stage)
	if err != nil {
		return fmt.Errorf("failed to create container: %w", err)
	}

	tableName, err := historyTable(c.Context, c.String("table"), di.MustGet[services.ParameterStore](container), stage)
	if err != nil {
		return err
	}

	dao := compiledao.New(di.MustGet[*dynamodb.Client](container), tableName)
	return runHistory(c, dao, stackName)
}

// historyTable resolves the table from the flag, then the parameter store, then the stage default
func historyTable(ctx context.Context, explicit string, store services.ParameterStore, stage string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}

	tableName, err := store.GetParameter(ctx, services.ParamHistoryTable)
	if err != nil {
		return "", fmt.Errorf("failed to resolve history table: %w", err)
	}
	if tableName != "" {
		return tableName, nil
	}
	return compiledao.TableName(stage), nil
}

func runHistory(c *cli.Context, store historyStore, stackName string) error {
	if id := c.String("delete"); id != "" {
		return deleteHistory(c, store, stackName, compiledao.ID(id))
	}

	function := c.String("function")
	if function == "" {
		return fmt.Errorf("--function is required")
	}
	pk := compiledao.NewPK(stackName, function)

	var records []compiledao.Record
	if c.Bool("latest") {
		latest, err := store.Latest(c.Context, pk)
		if err != nil {
			return err
		}
		if latest != nil {
			records = append(records, *latest)
		}
	} else {
		var err error
		if records, err = store.Query(c.Context, pk); err != nil {
			return err
		}
		if limit := c.Int("limit"); limit > 0 && len(records) > limit {
			records = records[:limit]
		}
	}

	ids := compiledao.IDs(records)

	if c.Bool(jsonFlag.Name) {
		entries := make([]historyEntry, 0, len(records))
		for i, record := range records {
			entries = append(entries, historyEntry{ID: ids[i], Record: record})
		}
		encoder := json.NewEncoder(c.App.Writer)
		encoder.SetIndent("", "  ")
		return encoder.Encode(entries)
	}

	w := c.App.Writer
	if len(records) == 0 {
		fmt.Fprintf(w, "No history for %s\n", pk)
		return nil
	}
	for i, record := range records {
		fmt.Fprintf(w, "%s  %-9s  %-7s  %s  %s\n",
			time.Unix(record.CreatedAt, 0).UTC().Format(time.RFC3339),
			record.Branch,
			record.Slot,
			record.Digest,
			ids[i],
		)
	}
	return nil
}

// deleteHistory removes a record after checking it belongs to stackName
func deleteHistory(c *cli.Context, store historyStore, stackName string, id compiledao.ID) error {
	logger := zerolog.Ctx(c.Context)

	record, err := store.Find(c.Context, id)
	if err != nil {
		return err
	}

	stack, _, err := compiledao.ParsePK(record.PK)
	if err != nil {
		return err
	}
	if stack != stackName {
		return fmt.Errorf("history record %s belongs to stack %s, not %s", id, stack, stackName)
	}

	if err := store.Delete(c.Context, id); err != nil {
		return err
	}

	logger.Info().Str("id", id.String()).Str("digest", record.Digest).Msg("Deleted history record")
	fmt.Fprintf(c.App.Writer, "Deleted %s\n", id)
	return nil
}

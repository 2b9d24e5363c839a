// Package compiledao stores the history of version slot decisions made when
// compiling a service. The history is informational; the deployed stack
// outputs remain the source of truth for the next decision.
package compiledao

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/savaki/ddb/v2"
	"github.com/savaki/gox/slicex"
	"github.com/segmentio/ksuid"
)

// TableName returns the history table name for a stage
func TableName(stage string) string {
	return fmt.Sprintf("sc-packager-%s-history", stage)
}

// PK represents the partition key: {stack}/{function}. Stack names never
// contain '/', function keys may.
type PK string

// NewPK creates a partition key from stack name and function key
func NewPK(stack, function string) PK {
	return PK(fmt.Sprintf("%s/%s", stack, function))
}

// ParsePK parses a partition key into stack and function components
func ParsePK(pk PK) (stack, function string, err error) {
	s := string(pk)
	stack, function, ok := strings.Cut(s, "/")
	if !ok || stack == "" || function == "" {
		return "", "", fmt.Errorf("invalid PK format: %s, expected {stack}/{function}", s)
	}
	return stack, function, nil
}

// String returns the string representation
func (pk PK) String() string {
	return string(pk)
}

// ID represents a history entry in format {stack}/{function}:{ksuid}
type ID string

// NewID constructs an ID from partition key and sort key
func NewID(pk PK, sk string) ID {
	return ID(fmt.Sprintf("%s:%s", pk, sk))
}

// ParseID parses an ID into its partition key and sort key. The sort key is
// a ksuid and never contains ':'.
func ParseID(id ID) (pk PK, sk string, err error) {
	s := string(id)
	i := strings.LastIndex(s, ":")
	if i < 0 || i == len(s)-1 {
		return "", "", fmt.Errorf("invalid ID format: %s, expected {stack}/{function}:{ksuid}", s)
	}
	if _, _, err := ParsePK(PK(s[:i])); err != nil {
		return "", "", err
	}
	return PK(s[:i]), s[i+1:], nil
}

func (id ID) String() string {
	return string(id)
}

// Record is a single compile decision
type Record struct {
	PK            PK     `ddb:"hash" dynamodbav:"pk"`  // {stack}/{function}
	SK            string `ddb:"range" dynamodbav:"sk"` // KSUID
	Stack         string `dynamodbav:"stack"`
	Function      string `dynamodbav:"function"`
	FunctionName  string `dynamodbav:"function_name,omitempty"`
	Digest        string `dynamodbav:"digest"`
	PriorDigest   string `dynamodbav:"prior_digest,omitempty"`
	Branch        string `dynamodbav:"branch"`
	Slot          string `dynamodbav:"slot"`
	OutputKey     string `dynamodbav:"output_key,omitempty"`
	FirstDeploy   bool   `dynamodbav:"first_deploy"`
	DigestChanged bool   `dynamodbav:"digest_changed"`
	CreatedAt     int64  `dynamodbav:"created_at"` // Unix epoch timestamp
}

// GetID returns the ID for this record
func (r *Record) GetID() ID {
	return NewID(r.PK, r.SK)
}

// CreateInput contains the fields recorded for a decision
type CreateInput struct {
	Stack         string
	Function      string
	FunctionName  string
	Digest        string
	PriorDigest   string
	Branch        string
	Slot          string
	OutputKey     string
	FirstDeploy   bool
	DigestChanged bool
}

// DAO provides data access operations for compile history
type DAO struct {
	db    *ddb.DDB
	table *ddb.Table
}

// New creates a new DAO instance
func New(client *dynamodb.Client, tableName string) *DAO {
	db := ddb.New(client)
	table := db.MustTable(tableName, &Record{})
	return &DAO{
		db:    db,
		table: table,
	}
}

// Create records a compile decision
func (d *DAO) Create(ctx context.Context, input CreateInput) (Record, error) {
	if input.Stack == "" || input.Function == "" {
		return Record{}, fmt.Errorf("stack and function are required")
	}
	if strings.Contains(input.Stack, "/") {
		return Record{}, fmt.Errorf("invalid stack name %q: must not contain '/'", input.Stack)
	}

	now := time.Now()
	sk, err := ksuid.NewRandomWithTime(now)
	if err != nil {
		return Record{}, fmt.Errorf("failed to generate ksuid: %w", err)
	}

	record := Record{
		PK:            NewPK(input.Stack, input.Function),
		SK:            sk.String(),
		Stack:         input.Stack,
		Function:      input.Function,
		FunctionName:  input.FunctionName,
		Digest:        input.Digest,
		PriorDigest:   input.PriorDigest,
		Branch:        input.Branch,
		Slot:          input.Slot,
		OutputKey:     input.OutputKey,
		FirstDeploy:   input.FirstDeploy,
		DigestChanged: input.DigestChanged,
		CreatedAt:     now.Unix(),
	}

	if err := d.table.Put(&record).RunWithContext(ctx); err != nil {
		return Record{}, fmt.Errorf("failed to create history record: %w", err)
	}

	return record, nil
}

// Find retrieves a history record by ID
func (d *DAO) Find(ctx context.Context, id ID) (Record, error) {
	pk, sk, err := ParseID(id)
	if err != nil {
		return Record{}, err
	}

	var record Record
	err = d.table.Get(pk.String()).
		Range(sk).
		ConsistentRead(true).
		ScanWithContext(ctx, &record)
	if err != nil {
		errStr := err.Error()
		if strings.Contains(errStr, "item not found") || strings.Contains(errStr, "ItemNotFound") {
			return Record{}, fmt.Errorf("history record not found: %s", id)
		}
		return Record{}, fmt.Errorf("failed to find history record: %w", err)
	}

	if record.PK == "" && record.SK == "" {
		return Record{}, fmt.Errorf("history record not found: %s", id)
	}

	return record, nil
}

// Query returns the history of a stack function, most recent first
func (d *DAO) Query(ctx context.Context, pk PK) ([]Record, error) {
	var records []Record

	err := d.table.Query("#PK = ?", pk.String()).
		FindAllWithContext(ctx, &records)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}

	// KSUIDs sort by creation time
	slices.SortFunc(records, func(a, b Record) int {
		return strings.Compare(b.SK, a.SK)
	})

	return records, nil
}

// Latest returns the most recent decision for a stack function, or nil if none
func (d *DAO) Latest(ctx context.Context, pk PK) (*Record, error) {
	records, err := d.Query(ctx, pk)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return &records[0], nil
}

// Delete removes a history record
func (d *DAO) Delete(ctx context.Context, id ID) error {
	pk, sk, err := ParseID(id)
	if err != nil {
		return err
	}

	err = d.table.Delete(pk.String()).
		Range(sk).
		RunWithContext(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete history record: %w", err)
	}

	return nil
}

// IDs returns the ids of records
func IDs(records []Record) []ID {
	return slicex.Map(records, recordID)
}

func recordID(r Record) ID {
	return r.GetID()
}

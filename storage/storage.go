package storage

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	"github.com/Azure/azure-sdk-for-go/sdk/data/aztables"
	"github.com/bytedance/sonic"
)

const (
	// Table string properties hold at most 64KiB, i.e. 32K UTF-16 units.
	tablePartBytes = 30000
	// Keeps the entity well under the 1MiB entity limit.
	tableMaxParts = 30
)

type tableClient interface {
	CreateTable(ctx context.Context, options *aztables.CreateTableOptions) (aztables.CreateTableResponse, error)
	GetEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.GetEntityOptions) (aztables.GetEntityResponse, error)
	UpsertEntity(ctx context.Context, entity []byte, options *aztables.UpsertEntityOptions) (aztables.UpsertEntityResponse, error)
	DeleteEntity(ctx context.Context, partitionKey, rowKey string, options *aztables.DeleteEntityOptions) (aztables.DeleteEntityResponse, error)
}

// TableStore keeps each value as one Azure Table entity. The payload is split
// across string properties Part00..PartNN.
type TableStore struct {
	table     tableClient
	partition string
}

// NewTableStore creates a TableStore from the given connection string.
func NewTableStore(connStr, table, partition string) (*TableStore, error) {
	tablesClientOptions := aztables.ClientOptions{
		ClientOptions: azcore.ClientOptions{
			Retry: policy.RetryOptions{
				MaxRetries:    3,
				TryTimeout:    time.Minute * 3,
				RetryDelay:    time.Second * 1,
				MaxRetryDelay: time.Second * 15,
				StatusCodes:   []int{408, 429, 500, 502, 503, 504},
			},
		},
	}
	svc, err := aztables.NewServiceClientFromConnectionString(connStr, &tablesClientOptions)
	if err != nil {
		return nil, err
	}
	return &TableStore{table: svc.NewClient(table), partition: partition}, nil
}

// EnsureTable creates the table, tolerating an existing one.
func (s *TableStore) EnsureTable(ctx context.Context) error {
	_, err := s.table.CreateTable(ctx, nil)
	if err != nil {
		var respErr *azcore.ResponseError
		if !(errors.As(err, &respErr) && respErr.ErrorCode == string(aztables.TableAlreadyExists)) {
			return err
		}
	}
	return nil
}

func (s *TableStore) Get(ctx context.Context, key string) ([]byte, error) {
	ent, err := s.table.GetEntity(ctx, s.partition, key, nil)
	if err != nil {
		if isStatus(err, http.StatusNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return decodeChunkedEntity(ent.Value)
}

func (s *TableStore) Set(ctx context.Context, key string, value []byte) error {
	if !utf8.Valid(value) {
		return fmt.Errorf("table store: value for %s is not valid UTF-8", key)
	}
	payload, err := encodeChunkedEntity(s.partition, key, value)
	if err != nil {
		return err
	}
	_, err = s.table.UpsertEntity(ctx, payload, &aztables.UpsertEntityOptions{UpdateMode: aztables.UpdateModeReplace})
	return err
}

func (s *TableStore) Clear(ctx context.Context, key string) error {
	_, err := s.table.DeleteEntity(ctx, s.partition, key, nil)
	if err != nil && !isStatus(err, http.StatusNotFound) {
		return err
	}
	return nil
}

func isStatus(err error, code int) bool {
	var respErr *azcore.ResponseError
	return errors.As(err, &respErr) && respErr.StatusCode == code
}

func partName(i int) string {
	return fmt.Sprintf("Part%02d", i)
}

func splitUTF8(s string, max int) []string {
	parts := make([]string, 0, len(s)/max+1)
	for len(s) > max {
		cut := max
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		parts = append(parts, s[:cut])
		s = s[cut:]
	}
	if s != "" || len(parts) == 0 {
		parts = append(parts, s)
	}
	return parts
}

func encodeChunkedEntity(pk, rk string, value []byte) ([]byte, error) {
	parts := splitUTF8(string(value), tablePartBytes)
	if len(parts) > tableMaxParts {
		return nil, ErrQuotaExceeded
	}
	ent := map[string]any{
		"PartitionKey": pk,
		"RowKey":       rk,
		"Parts":        len(parts),
	}
	for i, p := range parts {
		ent[partName(i)] = p
	}
	return sonic.Marshal(ent)
}

func decodeChunkedEntity(data []byte) ([]byte, error) {
	var raw map[string]any
	if err := sonic.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	n, ok := raw["Parts"].(float64)
	if !ok || n < 1 || n > tableMaxParts {
		return nil, fmt.Errorf("%w: invalid part count", ErrCorrupt)
	}
	var b strings.Builder
	for i := 0; i < int(n); i++ {
		p, ok := raw[partName(i)].(string)
		if !ok {
			return nil, fmt.Errorf("%w: missing %s", ErrCorrupt, partName(i))
		}
		b.WriteString(p)
	}
	return []byte(b.String()), nil
}

// Package testutil provides shared test utilities for the sensor API.
package testutil

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// FakeDynamoDB is an in-memory single table keyed by string pk/sk. It
// evaluates the subset of DynamoDB semantics the provider relies on:
// attribute_not_exists conditions, SET update-upserts, all-or-nothing
// transactions, begins_with key conditions, reverse scans and paging.
type FakeDynamoDB struct {
	mu    sync.Mutex
	items map[itemKey]map[string]ddbtypes.AttributeValue

	// PageSize caps the items per Query page when > 0.
	PageSize int

	errs       map[string]error
	calls      map[string]int
	failTxItem int
	failTxErr  error
}

type itemKey struct{ pk, sk string }

// NewFakeDynamoDB creates an empty fake table.
func NewFakeDynamoDB() *FakeDynamoDB {
	return &FakeDynamoDB{
		items:      make(map[itemKey]map[string]ddbtypes.AttributeValue),
		errs:       make(map[string]error),
		calls:      make(map[string]int),
		failTxItem: -1,
	}
}

// SetError makes every call to op ("GetItem", "Query", "TransactWriteItems",
// "DescribeTable", "CreateTable") fail with err. A nil err clears it.
func (f *FakeDynamoDB) SetError(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.errs, op)
		return
	}
	f.errs[op] = err
}

// FailTransactionAt makes the next transactions fail with err after staging
// the first index items, simulating a failure partway through the write.
func (f *FakeDynamoDB) FailTransactionAt(index int, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failTxItem = index
	f.failTxErr = err
}

// Calls returns the number of times op was invoked.
func (f *FakeDynamoDB) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

// Len returns the number of stored items.
func (f *FakeDynamoDB) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}

// Item returns the stored item for pk/sk, or nil.
func (f *FakeDynamoDB) Item(pk, sk string) map[string]ddbtypes.AttributeValue {
	f.mu.Lock()
	defer f.mu.Unlock()
	return copyItem(f.items[itemKey{pk, sk}])
}

// Seed stores item verbatim. The item must carry string pk and sk attributes.
func (f *FakeDynamoDB) Seed(item map[string]ddbtypes.AttributeValue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	k, err := keyOf(item)
	if err != nil {
		panic(err)
	}
	f.items[k] = copyItem(item)
}

func (f *FakeDynamoDB) enter(op string) error {
	f.calls[op]++
	return f.errs[op]
}

// GetItem implements the DynamoDB GetItem call.
func (f *FakeDynamoDB) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("GetItem"); err != nil {
		return nil, err
	}
	k, err := keyOf(in.Key)
	if err != nil {
		return nil, err
	}
	return &dynamodb.GetItemOutput{Item: copyItem(f.items[k])}, nil
}

var keyConditionRE = regexp.MustCompile(`^pk = (:\w+)(?: AND begins_with\(sk, (:\w+)\))?$`)

// Query implements the DynamoDB Query call for "pk = :v" and
// "pk = :v AND begins_with(sk, :p)" key conditions.
func (f *FakeDynamoDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("Query"); err != nil {
		return nil, err
	}

	m := keyConditionRE.FindStringSubmatch(aws.ToString(in.KeyConditionExpression))
	if m == nil {
		return nil, fmt.Errorf("fake: unsupported key condition %q", aws.ToString(in.KeyConditionExpression))
	}
	pk, err := stringValue(in.ExpressionAttributeValues, m[1])
	if err != nil {
		return nil, err
	}
	prefix := ""
	if m[2] != "" {
		if prefix, err = stringValue(in.ExpressionAttributeValues, m[2]); err != nil {
			return nil, err
		}
	}

	var matched []itemKey
	for k := range f.items {
		if k.pk == pk && strings.HasPrefix(k.sk, prefix) {
			matched = append(matched, k)
		}
	}
	sort.Slice(matched, func(i, j int) bool { return matched[i].sk < matched[j].sk })
	if in.ScanIndexForward != nil && !*in.ScanIndexForward {
		for i, j := 0, len(matched)-1; i < j; i, j = i+1, j-1 {
			matched[i], matched[j] = matched[j], matched[i]
		}
	}

	if in.ExclusiveStartKey != nil {
		start, err := keyOf(in.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
		for i, k := range matched {
			if k == start {
				matched = matched[i+1:]
				break
			}
		}
	}

	limit := len(matched)
	if in.Limit != nil && int(*in.Limit) < limit {
		limit = int(*in.Limit)
	}
	if f.PageSize > 0 && f.PageSize < limit {
		limit = f.PageSize
	}

	out := &dynamodb.QueryOutput{}
	for _, k := range matched[:limit] {
		out.Items = append(out.Items, copyItem(f.items[k]))
	}
	out.Count = int32(len(out.Items))
	if limit < len(matched) {
		last := matched[limit-1]
		out.LastEvaluatedKey = map[string]ddbtypes.AttributeValue{
			"pk": &ddbtypes.AttributeValueMemberS{Value: last.pk},
			"sk": &ddbtypes.AttributeValueMemberS{Value: last.sk},
		}
	}
	return out, nil
}

var setClauseRE = regexp.MustCompile(`^(\w+) = (:\w+)$`)

// TransactWriteItems implements the DynamoDB TransactWriteItems call for Put
// and Update items. Either every item is applied or none is.
func (f *FakeDynamoDB) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("TransactWriteItems"); err != nil {
		return nil, err
	}

	staged := make(map[itemKey]map[string]ddbtypes.AttributeValue)
	lookup := func(k itemKey) (map[string]ddbtypes.AttributeValue, bool) {
		if it, ok := staged[k]; ok {
			return it, true
		}
		it, ok := f.items[k]
		return it, ok
	}

	reasons := make([]ddbtypes.CancellationReason, len(in.TransactItems))
	cancelled := false
	for i, ti := range in.TransactItems {
		reasons[i] = ddbtypes.CancellationReason{Code: aws.String("None")}
		if i == f.failTxItem {
			return nil, f.failTxErr
		}
		switch {
		case ti.Put != nil:
			k, err := keyOf(ti.Put.Item)
			if err != nil {
				return nil, err
			}
			if cond := aws.ToString(ti.Put.ConditionExpression); cond != "" {
				if cond != "attribute_not_exists(pk) AND attribute_not_exists(sk)" {
					return nil, fmt.Errorf("fake: unsupported condition %q", cond)
				}
				if _, exists := lookup(k); exists {
					reasons[i] = ddbtypes.CancellationReason{
						Code:    aws.String("ConditionalCheckFailed"),
						Message: aws.String("The conditional request failed"),
					}
					cancelled = true
					continue
				}
			}
			staged[k] = copyItem(ti.Put.Item)
		case ti.Update != nil:
			k, err := keyOf(ti.Update.Key)
			if err != nil {
				return nil, err
			}
			next := copyItem(ti.Update.Key)
			if existing, ok := lookup(k); ok {
				next = copyItem(existing)
			}
			expr, ok := strings.CutPrefix(aws.ToString(ti.Update.UpdateExpression), "SET ")
			if !ok {
				return nil, fmt.Errorf("fake: unsupported update %q", aws.ToString(ti.Update.UpdateExpression))
			}
			for _, clause := range strings.Split(expr, ",") {
				m := setClauseRE.FindStringSubmatch(strings.TrimSpace(clause))
				if m == nil {
					return nil, fmt.Errorf("fake: unsupported set clause %q", clause)
				}
				v, ok := ti.Update.ExpressionAttributeValues[m[2]]
				if !ok {
					return nil, fmt.Errorf("fake: missing value %s", m[2])
				}
				next[m[1]] = v
			}
			staged[k] = next
		default:
			return nil, errors.New("fake: only Put and Update are supported")
		}
	}

	if cancelled {
		return nil, &ddbtypes.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled, please refer cancellation reasons for specific reasons"),
			CancellationReasons: reasons,
		}
	}
	for k, it := range staged {
		f.items[k] = it
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// DescribeTable implements the DynamoDB DescribeTable call.
func (f *FakeDynamoDB) DescribeTable(_ context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("DescribeTable"); err != nil {
		return nil, err
	}
	return &dynamodb.DescribeTableOutput{
		Table: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableStatus: ddbtypes.TableStatusActive,
			ItemCount:   aws.Int64(int64(len(f.items))),
		},
	}, nil
}

// CreateTable implements the DynamoDB CreateTable call.
func (f *FakeDynamoDB) CreateTable(_ context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.enter("CreateTable"); err != nil {
		return nil, err
	}
	return &dynamodb.CreateTableOutput{
		TableDescription: &ddbtypes.TableDescription{
			TableName:   in.TableName,
			TableStatus: ddbtypes.TableStatusActive,
		},
	}, nil
}

func keyOf(item map[string]ddbtypes.AttributeValue) (itemKey, error) {
	pk, err := stringValue(item, "pk")
	if err != nil {
		return itemKey{}, err
	}
	sk, err := stringValue(item, "sk")
	if err != nil {
		return itemKey{}, err
	}
	return itemKey{pk, sk}, nil
}

func stringValue(m map[string]ddbtypes.AttributeValue, name string) (string, error) {
	s, ok := m[name].(*ddbtypes.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("fake: %s is not a string attribute", name)
	}
	return s.Value, nil
}

func copyItem(item map[string]ddbtypes.AttributeValue) map[string]ddbtypes.AttributeValue {
	if item == nil {
		return nil
	}
	out := make(map[string]ddbtypes.AttributeValue, len(item))
	for k, v := range item {
		out[k] = v
	}
	return out
}

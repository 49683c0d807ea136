package dynamodb

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/sony/gobreaker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dwsmith1983/trashcan/internal/testutil"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newFakeProvider(t *testing.T, cfg *Config) (*DynamoDBProvider, *testutil.FakeDynamoDB) {
	t.Helper()
	if cfg == nil {
		cfg = &Config{}
	}
	cfg.TableName = "test-table"
	fake := testutil.NewFakeDynamoDB()
	p := NewWithClient(fake, cfg)
	p.SetClock(testutil.StepClock(t0, time.Second))
	return p, fake
}

func TestRegister_CreatesBothRows(t *testing.T) {
	p, fake := newFakeProvider(t, nil)

	require.NoError(t, p.Register(context.Background(), "bin-1", 4))
	assert.Equal(t, 2, fake.Len())

	details := fake.Item("device#bin-1", "details")
	require.NotNil(t, details)
	assert.Equal(t, "4", testutil.NumberAttr(t, details, "total_levels"))

	current := fake.Item("report#current", "device#bin-1")
	require.NotNil(t, current)
	assert.Equal(t, "4", testutil.NumberAttr(t, current, "total_levels"))
	assert.Equal(t,
		testutil.StringAttr(t, details, "creation_timestamp"),
		testutil.StringAttr(t, current, "creation_timestamp"))
}

func TestRegister_SecondCallLeavesRowsUnchanged(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, "bin-1", 4))
	before := fake.Item("device#bin-1", "details")

	require.NoError(t, p.Register(ctx, "bin-1", 9))
	after := fake.Item("device#bin-1", "details")

	assert.Equal(t, before, after)
	assert.Equal(t, "4", testutil.NumberAttr(t, fake.Item("report#current", "device#bin-1"), "total_levels"))
	assert.Equal(t, 2, fake.Len())
}

func TestRegister_ConcurrentDuplicates(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 10)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = p.Register(ctx, "bin-race", i+1)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 2, fake.Len())
	details := fake.Item("device#bin-race", "details")
	current := fake.Item("report#current", "device#bin-race")
	assert.Equal(t,
		testutil.NumberAttr(t, details, "total_levels"),
		testutil.NumberAttr(t, current, "total_levels"))
}

func TestRegister_PartialExistingRowIsNoop(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	fake.Seed(map[string]ddbtypes.AttributeValue{
		"pk":           &ddbtypes.AttributeValueMemberS{Value: "device#bin-1"},
		"sk":           &ddbtypes.AttributeValueMemberS{Value: "details"},
		"total_levels": &ddbtypes.AttributeValueMemberN{Value: "6"},
	})

	require.NoError(t, p.Register(context.Background(), "bin-1", 4))
	assert.Equal(t, 1, fake.Len())
	assert.Nil(t, fake.Item("report#current", "device#bin-1"))
}

func TestReport_AppendsHistoryAndUpdatesCurrent(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, "bin-1", 4))
	require.NoError(t, p.Report(ctx, "bin-1", 2))
	require.NoError(t, p.Report(ctx, "bin-1", 3))

	assert.Equal(t, 4, fake.Len())
	assert.Equal(t, 2, fake.Calls("TransactWriteItems")-1)

	current := fake.Item("report#current", "device#bin-1")
	assert.Equal(t, "3", testutil.NumberAttr(t, current, "fill_level"))
	assert.Equal(t, "4", testutil.NumberAttr(t, current, "total_levels"))
	assert.Equal(t, "2024-01-01T00:00:02.000000000Z", testutil.StringAttr(t, current, "updated_timestamp"))
	assert.Equal(t, "2024-01-01T00:00:00.000000000Z", testutil.StringAttr(t, current, "creation_timestamp"))

	hist := fake.Item("device#bin-1", "report#timestamp#2024-01-01T00:00:01.000000000Z")
	require.NotNil(t, hist)
	assert.Equal(t, "2", testutil.NumberAttr(t, hist, "fill_level"))
}

func TestReport_FailureWritesNothing(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Register(ctx, "bin-1", 4))

	fake.FailTransactionAt(1, errors.New("throttled"))
	err := p.Report(ctx, "bin-1", 2)
	assert.Equal(t, types.CodeReport, types.CodeOf(err, ""))

	assert.Equal(t, 2, fake.Len())
	_, present := fake.Item("report#current", "device#bin-1")["fill_level"]
	assert.False(t, present)
}

func TestReport_UnregisteredDeviceUpserts(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Report(ctx, "orphan", 1))

	current := fake.Item("report#current", "device#orphan")
	require.NotNil(t, current)
	assert.Equal(t, "1", testutil.NumberAttr(t, current, "fill_level"))
	assert.NotContains(t, current, "total_levels")
	assert.NotContains(t, current, "creation_timestamp")

	devices, err := p.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	assert.Equal(t, int64(1), devices[0]["fill_level"])

	_, _, err = p.GetDevice(ctx, "orphan")
	assert.ErrorIs(t, err, types.ErrDeviceNotFound)
}

func TestListDevices_FollowsPages(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	fake.PageSize = 1
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, p.Register(ctx, id, 4))
	}

	devices, err := p.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 3)
	assert.GreaterOrEqual(t, fake.Calls("Query"), 3)

	var sks []string
	for _, d := range devices {
		sk, ok := d.String("sk")
		require.True(t, ok)
		sks = append(sks, sk)
	}
	assert.ElementsMatch(t, []string{"device#a", "device#b", "device#c"}, sks)
}

func TestListDevices_IgnoresHistoryRows(t *testing.T) {
	p, _ := newFakeProvider(t, nil)
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, "bin-1", 4))
	require.NoError(t, p.Report(ctx, "bin-1", 1))

	devices, err := p.ListDevices(ctx)
	require.NoError(t, err)
	require.Len(t, devices, 1)
	pk, _ := devices[0].String("pk")
	assert.Equal(t, "report#current", pk)
}

func TestGetDevice_HistoryNewestFirst(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	fake.PageSize = 2
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, "bin-1", 4))
	for level := 1; level <= 3; level++ {
		require.NoError(t, p.Report(ctx, "bin-1", level))
	}

	details, history, err := p.GetDevice(ctx, "bin-1")
	require.NoError(t, err)
	total, ok := details.Int("total_levels")
	require.True(t, ok)
	assert.Equal(t, int64(4), total)

	require.Len(t, history, 3)
	for i, want := range []int64{3, 2, 1} {
		got, ok := history[i].Int("fill_level")
		require.True(t, ok)
		assert.Equal(t, want, got)
	}
}

func TestGetDevice_NoHistory(t *testing.T) {
	p, _ := newFakeProvider(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Register(ctx, "bin-1", 4))

	_, history, err := p.GetDevice(ctx, "bin-1")
	require.NoError(t, err)
	assert.NotNil(t, history)
	assert.Empty(t, history)
}

func TestGetDevice_HistoryLimit(t *testing.T) {
	p, fake := newFakeProvider(t, &Config{HistoryLimit: 2})
	fake.PageSize = 1
	ctx := context.Background()

	require.NoError(t, p.Register(ctx, "bin-1", 4))
	for level := 1; level <= 4; level++ {
		require.NoError(t, p.Report(ctx, "bin-1", level))
	}

	_, history, err := p.GetDevice(ctx, "bin-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, int64(4), history[0]["fill_level"])
	assert.Equal(t, int64(3), history[1]["fill_level"])
}

func TestGetDevice_HistoryQueryFails(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	ctx := context.Background()
	require.NoError(t, p.Register(ctx, "bin-1", 4))

	fake.SetError("Query", errors.New("boom"))
	_, _, err := p.GetDevice(ctx, "bin-1")
	assert.Equal(t, types.CodeDeviceHistory, types.CodeOf(err, ""))
}

func TestBreaker_OpensAfterConsecutiveFailures(t *testing.T) {
	fake := testutil.NewFakeDynamoDB()
	client := newBreakerClient(fake, BreakerConfig{Enabled: true, FailThreshold: 2, Cooldown: "1h"})
	p := NewWithClient(client, &Config{TableName: "test-table"})
	ctx := context.Background()

	fake.SetError("Query", errors.New("unavailable"))
	for i := 0; i < 2; i++ {
		_, err := p.ListDevices(ctx)
		require.Error(t, err)
	}
	assert.Equal(t, 2, fake.Calls("Query"))

	_, err := p.ListDevices(ctx)
	assert.ErrorIs(t, err, gobreaker.ErrOpenState)
	assert.Equal(t, types.CodeListDevices, types.CodeOf(err, ""))
	assert.Equal(t, 2, fake.Calls("Query"), "open breaker must not reach the table")
}

func TestBreaker_ConditionalRejectionsDoNotTrip(t *testing.T) {
	fake := testutil.NewFakeDynamoDB()
	client := newBreakerClient(fake, BreakerConfig{Enabled: true, FailThreshold: 1, Cooldown: "1h"})
	p := NewWithClient(client, &Config{TableName: "test-table"})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, p.Register(ctx, "bin-1", 4))
	}
	assert.Equal(t, gobreaker.StateClosed, client.cb.State())
	assert.Equal(t, 3, fake.Calls("TransactWriteItems"))
}

func TestRegister_TransactionConflictFromFake(t *testing.T) {
	p, fake := newFakeProvider(t, nil)
	fake.SetError("TransactWriteItems", &ddbtypes.TransactionCanceledException{
		Message: aws.String("Transaction cancelled"),
		CancellationReasons: []ddbtypes.CancellationReason{
			{Code: aws.String("TransactionConflict")},
		},
	})

	err := p.Register(context.Background(), "bin-1", 4)
	assert.Equal(t, types.CodeRegisterTransaction, types.CodeOf(err, ""))
	assert.Equal(t, 0, fake.Len())
}

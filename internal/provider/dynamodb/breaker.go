package dynamodb

import (
	"context"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/sony/gobreaker"

	"github.com/dwsmith1983/trashcan/internal/metrics"
)

// Breaker defaults.
const (
	defaultFailThreshold = 5
	defaultCooldown      = 30 * time.Second
)

// breakerClient fails fast while DynamoDB is returning consecutive
// infrastructure errors. It never retries. Conditional rejections count as
// successes: they are normal outcomes of idempotent writes.
type breakerClient struct {
	next DDBAPI
	cb   *gobreaker.CircuitBreaker
}

var _ DDBAPI = (*breakerClient)(nil)

func newBreakerClient(next DDBAPI, cfg BreakerConfig) *breakerClient {
	threshold := cfg.FailThreshold
	if threshold == 0 {
		threshold = defaultFailThreshold
	}
	cooldown := defaultCooldown
	if cfg.Cooldown != "" {
		if d, err := time.ParseDuration(cfg.Cooldown); err == nil && d > 0 {
			cooldown = d
		}
	}

	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "dynamodb",
		Timeout: cooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("storage circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
			open := 0.0
			if to == gobreaker.StateOpen {
				open = 1
			}
			metrics.BreakerState.WithLabelValues(name).Set(open)
		},
		IsSuccessful: func(err error) bool {
			return err == nil || isConditionalCheckFailed(err) || isConditionalCancellation(err)
		},
	})
	return &breakerClient{next: next, cb: cb}
}

func execute[T any](cb *gobreaker.CircuitBreaker, fn func() (T, error)) (T, error) {
	out, err := cb.Execute(func() (interface{}, error) {
		return fn()
	})
	v, _ := out.(T)
	return v, err
}

func (b *breakerClient) GetItem(ctx context.Context, in *dynamodb.GetItemInput, opts ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	return execute(b.cb, func() (*dynamodb.GetItemOutput, error) { return b.next.GetItem(ctx, in, opts...) })
}

func (b *breakerClient) Query(ctx context.Context, in *dynamodb.QueryInput, opts ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	return execute(b.cb, func() (*dynamodb.QueryOutput, error) { return b.next.Query(ctx, in, opts...) })
}

func (b *breakerClient) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, opts ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	return execute(b.cb, func() (*dynamodb.TransactWriteItemsOutput, error) { return b.next.TransactWriteItems(ctx, in, opts...) })
}

func (b *breakerClient) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return execute(b.cb, func() (*dynamodb.DescribeTableOutput, error) { return b.next.DescribeTable(ctx, in, opts...) })
}

// CreateTable bypasses the breaker; it only runs at startup.
func (b *breakerClient) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, opts ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	return b.next.CreateTable(ctx, in, opts...)
}

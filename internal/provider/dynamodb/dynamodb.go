// Package dynamodb implements the Provider interface using AWS DynamoDB.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/internal/metrics"
	"github.com/dwsmith1983/trashcan/internal/provider"
)

// Compile-time interface satisfaction check.
var _ provider.Provider = (*DynamoDBProvider)(nil)

const tracerName = "github.com/dwsmith1983/trashcan/internal/provider/dynamodb"

// DDBAPI is the subset of the DynamoDB client used by the provider.
type DDBAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// DynamoDBProvider implements the Provider interface backed by DynamoDB.
// It holds no per-request state; the client is shared across requests.
type DynamoDBProvider struct {
	client       DDBAPI
	tableName    string
	logger       *slog.Logger
	tracer       trace.Tracer
	now          func() time.Time
	historyLimit int
	createTable  bool
}

// New creates a new DynamoDBProvider with a client built from the default AWS
// credential chain.
func New(cfg *Config) (*DynamoDBProvider, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, awsconfig.WithRegion(cfg.Region))
	}

	// For DynamoDB Local: use static credentials and custom endpoint.
	if cfg.Endpoint != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider("local", "local", ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), opts...)
	if err != nil {
		return nil, fmt.Errorf("loading AWS config: %w", err)
	}

	var clientOpts []func(*dynamodb.Options)
	if cfg.Endpoint != "" {
		clientOpts = append(clientOpts, func(o *dynamodb.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}

	var client DDBAPI = dynamodb.NewFromConfig(awsCfg, clientOpts...)
	if cfg.Breaker.Enabled {
		client = newBreakerClient(client, cfg.Breaker)
	}
	return NewWithClient(client, cfg), nil
}

// NewWithClient creates a provider around an existing client.
func NewWithClient(client DDBAPI, cfg *Config) *DynamoDBProvider {
	return &DynamoDBProvider{
		client:       client,
		tableName:    cfg.TableName,
		logger:       slog.Default(),
		tracer:       otel.Tracer(tracerName),
		now:          time.Now,
		historyLimit: cfg.HistoryLimit,
		createTable:  cfg.CreateTable,
	}
}

// SetLogger overrides the default logger.
func (p *DynamoDBProvider) SetLogger(l *slog.Logger) {
	if l != nil {
		p.logger = l
	}
}

// SetClock overrides the clock used to timestamp reports and registrations.
func (p *DynamoDBProvider) SetClock(now func() time.Time) {
	if now != nil {
		p.now = now
	}
}

// Start initializes the provider: optionally creates the table, then pings DynamoDB.
func (p *DynamoDBProvider) Start(ctx context.Context) error {
	if p.createTable {
		if err := p.EnsureTable(ctx); err != nil {
			return err
		}
	}
	return p.Ping(ctx)
}

// Stop is a no-op for DynamoDB (no persistent connections to close).
func (p *DynamoDBProvider) Stop(_ context.Context) error {
	return nil
}

// Ping checks connectivity by describing the table.
func (p *DynamoDBProvider) Ping(ctx context.Context) error {
	_, err := p.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: &p.tableName,
	})
	if err != nil {
		return fmt.Errorf("dynamodb ping failed: %w", err)
	}
	return nil
}

// EnsureTable creates the table with its pk/sk key schema. An existing table is not an error.
func (p *DynamoDBProvider) EnsureTable(ctx context.Context) error {
	_, err := p.client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: &p.tableName,
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String(keys.AttrPK), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String(keys.AttrSK), KeyType: ddbtypes.KeyTypeRange},
		},
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String(keys.AttrPK), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String(keys.AttrSK), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	if err != nil {
		var riue *ddbtypes.ResourceInUseException
		if errors.As(err, &riue) {
			return nil // table already exists
		}
		return fmt.Errorf("creating table: %w", err)
	}
	p.logger.Info("created table", "table", p.tableName)
	return nil
}

// observe starts a span for a storage operation and returns a func that
// records its outcome.
func (p *DynamoDBProvider) observe(ctx context.Context, op, deviceID string) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := p.tracer.Start(ctx, "dynamodb."+op, trace.WithAttributes(
		attribute.String("db.system", "dynamodb"),
		attribute.String("aws.dynamodb.table_names", p.tableName),
	))
	if deviceID != "" {
		span.SetAttributes(attribute.String("device.id", deviceID))
	}
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		metrics.StorageOperations.WithLabelValues(op, metrics.ResultOf(err)).Inc()
		metrics.StorageLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	}
}

// isConditionalCheckFailed returns true if the error is a DynamoDB ConditionalCheckFailedException.
func isConditionalCheckFailed(err error) bool {
	var ccfe *ddbtypes.ConditionalCheckFailedException
	return errors.As(err, &ccfe)
}

func isTransactionCanceled(err error) bool {
	var tce *ddbtypes.TransactionCanceledException
	return errors.As(err, &tce)
}

// isConditionalCancellation returns true if a transaction was cancelled
// because at least one of its condition expressions failed.
func isConditionalCancellation(err error) bool {
	var tce *ddbtypes.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

func strAttr(v string) *ddbtypes.AttributeValueMemberS {
	return &ddbtypes.AttributeValueMemberS{Value: v}
}

func numAttr(n int) *ddbtypes.AttributeValueMemberN {
	return &ddbtypes.AttributeValueMemberN{Value: fmt.Sprintf("%d", n)}
}

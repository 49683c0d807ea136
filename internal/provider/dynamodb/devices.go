package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

const keyConditionPrefix = "pk = :pk AND begins_with(sk, :sk_beginning)"

// ListDevices returns every current status row, following the query cursor
// until it is exhausted.
func (p *DynamoDBProvider) ListDevices(ctx context.Context) (devices []types.Record, err error) {
	ctx, done := p.observe(ctx, "list_devices", "")
	defer func() { done(err) }()

	paginator := dynamodb.NewQueryPaginator(p.client, &dynamodb.QueryInput{
		TableName:              &p.tableName,
		KeyConditionExpression: aws.String(keyConditionPrefix),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":           strAttr(keys.ReportCurrent),
			":sk_beginning": strAttr(keys.DevicePrefix()),
		},
	})

	devices = []types.Record{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, types.NewError(types.CodeListDevices, types.MsgListDevices, err)
		}
		recs, err := decodeRecords(page.Items)
		if err != nil {
			return nil, types.NewError(types.CodeListDevices, types.MsgListDevices, err)
		}
		devices = append(devices, recs...)
	}
	return devices, nil
}

// GetDevice reads the device details row, then its history newest first.
// A missing details row yields a CodeDeviceNotFound error wrapping
// types.ErrDeviceNotFound.
func (p *DynamoDBProvider) GetDevice(ctx context.Context, deviceID string) (details types.Record, history []types.Record, err error) {
	ctx, done := p.observe(ctx, "get_device", deviceID)
	defer func() { done(err) }()

	out, err := p.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: &p.tableName,
		Key: map[string]ddbtypes.AttributeValue{
			keys.AttrPK: strAttr(keys.DeviceKey(deviceID)),
			keys.AttrSK: strAttr(keys.Details),
		},
	})
	if err != nil {
		return nil, nil, types.NewError(types.CodeDeviceDetails, types.MsgDeviceDetails, err)
	}
	if len(out.Item) == 0 {
		return nil, nil, types.NewError(types.CodeDeviceNotFound, types.MsgDeviceNotFound, types.ErrDeviceNotFound)
	}
	details, err = decodeRecord(out.Item)
	if err != nil {
		return nil, nil, types.NewError(types.CodeDeviceDetails, types.MsgDeviceDetails, err)
	}

	history, err = p.listHistory(ctx, deviceID)
	if err != nil {
		return nil, nil, types.NewError(types.CodeDeviceHistory, types.MsgDeviceHistory, err)
	}
	return details, history, nil
}

func (p *DynamoDBProvider) listHistory(ctx context.Context, deviceID string) ([]types.Record, error) {
	input := &dynamodb.QueryInput{
		TableName:              &p.tableName,
		KeyConditionExpression: aws.String(keyConditionPrefix),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":pk":           strAttr(keys.DeviceKey(deviceID)),
			":sk_beginning": strAttr(keys.ReportSortKey("")),
		},
		ScanIndexForward: aws.Bool(false),
	}
	if p.historyLimit > 0 {
		input.Limit = aws.Int32(int32(p.historyLimit))
	}
	paginator := dynamodb.NewQueryPaginator(p.client, input)

	history := []types.Record{}
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		recs, err := decodeRecords(page.Items)
		if err != nil {
			return nil, err
		}
		history = append(history, recs...)
		if p.historyLimit > 0 && len(history) >= p.historyLimit {
			return history[:p.historyLimit], nil
		}
	}
	return history, nil
}

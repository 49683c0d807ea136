package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

// Report appends a history row and updates the current status row in one
// transaction. The update is an upsert: reporting for an unregistered device
// creates a current status row without total_levels or creation_timestamp.
func (p *DynamoDBProvider) Report(ctx context.Context, deviceID string, fillLevel int) (err error) {
	ctx, done := p.observe(ctx, "report", deviceID)
	defer func() { done(err) }()

	reported := keys.FormatTimestamp(p.now())

	_, err = p.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName: &p.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						keys.AttrPK:                strAttr(keys.DeviceKey(deviceID)),
						keys.AttrSK:                strAttr(keys.ReportSortKey(reported)),
						keys.AttrFillLevel:         numAttr(fillLevel),
						keys.AttrCreationTimestamp: strAttr(reported),
					},
				},
			},
			{
				Update: &ddbtypes.Update{
					TableName: &p.tableName,
					Key: map[string]ddbtypes.AttributeValue{
						keys.AttrPK: strAttr(keys.ReportCurrent),
						keys.AttrSK: strAttr(keys.DeviceKey(deviceID)),
					},
					UpdateExpression: aws.String("SET fill_level = :fill_level, updated_timestamp = :updated_timestamp"),
					ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
						":fill_level":        numAttr(fillLevel),
						":updated_timestamp": strAttr(reported),
					},
				},
			},
		},
	})
	if err != nil {
		return types.NewError(types.CodeReport, types.MsgReport, err)
	}
	return nil
}

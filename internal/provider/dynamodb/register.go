package dynamodb

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/dwsmith1983/trashcan/internal/keys"
	"github.com/dwsmith1983/trashcan/pkg/types"
)

const conditionNotExists = "attribute_not_exists(pk) AND attribute_not_exists(sk)"

// Register writes the device details and current status rows in one
// transaction, each conditioned on the row not existing yet. A conditional
// rejection means the device is already registered and is not an error.
func (p *DynamoDBProvider) Register(ctx context.Context, deviceID string, totalLevels int) (err error) {
	ctx, done := p.observe(ctx, "register", deviceID)
	defer func() { done(err) }()

	created := keys.FormatTimestamp(p.now())

	_, err = p.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []ddbtypes.TransactWriteItem{
			{
				Put: &ddbtypes.Put{
					TableName: &p.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						keys.AttrPK:                strAttr(keys.DeviceKey(deviceID)),
						keys.AttrSK:                strAttr(keys.Details),
						keys.AttrTotalLevels:       numAttr(totalLevels),
						keys.AttrCreationTimestamp: strAttr(created),
					},
					ConditionExpression: aws.String(conditionNotExists),
				},
			},
			{
				Put: &ddbtypes.Put{
					TableName: &p.tableName,
					Item: map[string]ddbtypes.AttributeValue{
						keys.AttrPK:                strAttr(keys.ReportCurrent),
						keys.AttrSK:                strAttr(keys.DeviceKey(deviceID)),
						keys.AttrTotalLevels:       numAttr(totalLevels),
						keys.AttrCreationTimestamp: strAttr(created),
					},
					ConditionExpression: aws.String(conditionNotExists),
				},
			},
		},
	})
	if err == nil {
		return nil
	}
	if isConditionalCancellation(err) {
		p.logger.Debug("device already registered", "device", deviceID)
		return nil
	}
	if isTransactionCanceled(err) {
		return types.NewError(types.CodeRegisterTransaction, types.MsgRegisterTransaction, err)
	}
	return types.NewError(types.CodeRegister, types.MsgRegister, err)
}

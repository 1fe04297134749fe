package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"order-agent/internal/domain"
)

// maxOrderLines keeps a placed order within one 100-item transaction.
const maxOrderLines = 99

// RecordOrder writes the order header and one item per line in a single
// transaction. The header put is conditional so an id is never reused.
func (c *Client) RecordOrder(ctx context.Context, po domain.PlacedOrder) (string, error) {
	if po.ID == "" {
		return "", errors.New("repository: RecordOrder: order id is required")
	}
	if po.Order.IsEmpty() {
		return "", errors.New("repository: RecordOrder: order has no lines")
	}
	if len(po.Order.Lines) > maxOrderLines {
		return "", fmt.Errorf("repository: RecordOrder: %d lines exceeds limit of %d", len(po.Order.Lines), maxOrderLines)
	}
	placedAt := po.PlacedAt
	if placedAt.IsZero() {
		placedAt = c.now()
	}

	pk := orderPK(po.ID)
	items := make([]types.TransactWriteItem, 0, len(po.Order.Lines)+1)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName: aws.String(c.tableName),
			Item: map[string]types.AttributeValue{
				"PK":            sAttr(pk),
				"SK":            sAttr(skMeta),
				"orderId":       sAttr(po.ID),
				"sessionId":     sAttr(po.SessionID),
				"customerName":  sAttr(po.Order.CustomerName),
				"customerEmail": sAttr(po.Order.CustomerEmail),
				"total":         floatValue(po.Order.Total),
				"lineCount":     intValue(int64(len(po.Order.Lines))),
				"status":        sAttr("placed"),
				"placedAt":      sAttr(placedAt.UTC().Format(time.RFC3339)),
			},
			ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
		},
	})
	for i, l := range po.Order.Lines {
		items = append(items, types.TransactWriteItem{
			Put: &types.Put{
				TableName: aws.String(c.tableName),
				Item: map[string]types.AttributeValue{
					"PK":        sAttr(pk),
					"SK":        sAttr(lineSK(i + 1)),
					"flavor":    sAttr(l.Flavor),
					"quantity":  intValue(int64(l.Quantity)),
					"unitPrice": floatValue(l.UnitPrice),
					"subtotal":  floatValue(l.Subtotal()),
				},
			},
		})
	}

	if _, err := c.api.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items}); err != nil {
		return "", fmt.Errorf("repository: RecordOrder: %w", err)
	}
	return po.ID, nil
}

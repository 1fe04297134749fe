package repository

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"order-agent/internal/domain"
)

type fakeDynamo struct {
	mu sync.Mutex

	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	queryPages   map[string][]*dynamodb.QueryOutput
	queryErr     map[string]error
	queryCalls   map[string]int
	txErr        error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastTxInput  *dynamodb.TransactWriteItemsInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

// Query serves the configured pages for the requested partition in order.
func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := in.ExpressionAttributeValues[":pk"].(*types.AttributeValueMemberS).Value
	if err := f.queryErr[pk]; err != nil {
		return nil, err
	}
	if f.queryCalls == nil {
		f.queryCalls = map[string]int{}
	}
	n := f.queryCalls[pk]
	f.queryCalls[pk]++
	pages := f.queryPages[pk]
	if n >= len(pages) {
		return &dynamodb.QueryOutput{}, nil
	}
	return pages[n], nil
}

func (f *fakeDynamo) TransactWriteItems(_ context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.lastTxInput = in
	return &dynamodb.TransactWriteItemsOutput{}, f.txErr
}

func item(kv ...any) map[string]types.AttributeValue {
	out := make(map[string]types.AttributeValue, len(kv)/2)
	for i := 0; i < len(kv); i += 2 {
		k := kv[i].(string)
		switch v := kv[i+1].(type) {
		case string:
			out[k] = &types.AttributeValueMemberS{Value: v}
		case int:
			out[k] = intValue(int64(v))
		case float64:
			out[k] = floatValue(v)
		case bool:
			out[k] = &types.AttributeValueMemberBOOL{Value: v}
		case []string:
			out[k] = &types.AttributeValueMemberSS{Value: v}
		}
	}
	return out
}

func mustNewClient(t *testing.T, db *fakeDynamo) *Client {
	t.Helper()
	c, err := New(db, "test-table")
	require.NoError(t, err)
	c.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestNew_Validates(t *testing.T) {
	_, err := New(nil, "t")
	require.ErrorContains(t, err, "api must not be nil")
	_, err = New(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "table name")
}

func TestLoadMenu_ProductsAliasesAndFAQ(t *testing.T) {
	db := &fakeDynamo{queryPages: map[string][]*dynamodb.QueryOutput{
		pkCatalog: {
			{
				Items: []map[string]types.AttributeValue{
					item("PK", pkCatalog, "SK", "ALIAS#choc chip", "product", "Chocolate Chip"),
					item("PK", pkCatalog, "SK", "PRODUCT#oat", "id", "oat", "name", "Oatmeal Raisin", "price", 16.0, "unit", "dozen", "position", 2),
				},
				LastEvaluatedKey: item("PK", pkCatalog, "SK", "PRODUCT#oat"),
			},
			{
				Items: []map[string]types.AttributeValue{
					item("PK", pkCatalog, "SK", "PRODUCT#sugar", "name", "Sugar", "price", 15.5, "unit", "dozen", "available", false, "position", 3),
					item("PK", pkCatalog, "SK", "PRODUCT#choc", "name", "Chocolate Chip", "price", 18.0, "unit", "dozen", "position", 1,
						"ingredients", []string{"flour", "chocolate"}),
				},
			},
		},
		pkFAQ: {
			{Items: []map[string]types.AttributeValue{
				item("PK", pkFAQ, "SK", "ENTRY#2", "question", "Do you deliver?", "answer", "Yes.", "keywords", []string{"delivery"}, "position", 2),
				item("PK", pkFAQ, "SK", "ENTRY#1", "question", "Hours?", "answer", "9 to 5.", "position", 1),
			}},
		},
	}}
	c := mustNewClient(t, db)

	menu, err := c.LoadMenu(context.Background())
	require.NoError(t, err)

	require.Len(t, menu.Products, 3)
	require.Equal(t, "Chocolate Chip", menu.Products[0].Name)
	require.Equal(t, "choc", menu.Products[0].ID)
	require.Equal(t, []string{"flour", "chocolate"}, menu.Products[0].Ingredients)
	require.True(t, menu.Products[0].Available)
	require.Equal(t, "Oatmeal Raisin", menu.Products[1].Name)
	require.False(t, menu.Products[2].Available)
	require.InDelta(t, 15.5, menu.Products[2].Price, 1e-9)

	require.Equal(t, map[string]string{"choc chip": "Chocolate Chip"}, menu.Aliases)

	require.Len(t, menu.Knowledge, 2)
	require.Equal(t, "Hours?", menu.Knowledge[0].Question)
	require.Equal(t, []string{"delivery"}, menu.Knowledge[1].Keywords)

	require.Equal(t, 2, db.queryCalls[pkCatalog])
}

func TestLoadMenu_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: map[string]error{pkFAQ: errors.New("throttled")}}
	c := mustNewClient(t, db)
	_, err := c.LoadMenu(context.Background())
	require.ErrorContains(t, err, "throttled")
}

func TestLoadMenu_BadProduct(t *testing.T) {
	db := &fakeDynamo{queryPages: map[string][]*dynamodb.QueryOutput{
		pkCatalog: {{Items: []map[string]types.AttributeValue{
			item("PK", pkCatalog, "SK", "PRODUCT#x", "name", "X"),
		}}},
	}}
	c := mustNewClient(t, db)
	_, err := c.LoadMenu(context.Background())
	require.ErrorContains(t, err, `missing attribute "price"`)
}

func TestRecordOrder_WritesHeaderAndLines(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	var o domain.Order
	o.AddLine("Chocolate Chip", 2, 18)
	o.AddLine("Sugar", 1, 15)
	o.CustomerName = "Sam"
	o.CustomerEmail = "sam@example.com"

	id, err := c.RecordOrder(context.Background(), domain.PlacedOrder{ID: "ORD-1", SessionID: "s-1", Order: o})
	require.NoError(t, err)
	require.Equal(t, "ORD-1", id)

	items := db.lastTxInput.TransactItems
	require.Len(t, items, 3)

	meta := items[0].Put
	require.Equal(t, "test-table", *meta.TableName)
	require.Equal(t, "attribute_not_exists(PK) AND attribute_not_exists(SK)", *meta.ConditionExpression)
	require.Equal(t, &types.AttributeValueMemberS{Value: "ORDER#ORD-1"}, meta.Item["PK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: skMeta}, meta.Item["SK"])
	require.Equal(t, &types.AttributeValueMemberN{Value: "51"}, meta.Item["total"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "2026-03-01T12:00:00Z"}, meta.Item["placedAt"])

	line := items[2].Put
	require.Equal(t, &types.AttributeValueMemberS{Value: "LINE#02"}, line.Item["SK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "Sugar"}, line.Item["flavor"])
	require.Equal(t, &types.AttributeValueMemberN{Value: "1"}, line.Item["quantity"])
}

func TestRecordOrder_Validates(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})

	_, err := c.RecordOrder(context.Background(), domain.PlacedOrder{})
	require.ErrorContains(t, err, "order id is required")

	_, err = c.RecordOrder(context.Background(), domain.PlacedOrder{ID: "ORD-1"})
	require.ErrorContains(t, err, "no lines")

	var big domain.Order
	for i := 0; i < maxOrderLines+1; i++ {
		big.AddLine(string(rune('A'+i%26))+string(rune('a'+i/26)), 1, 1)
	}
	_, err = c.RecordOrder(context.Background(), domain.PlacedOrder{ID: "ORD-1", Order: big})
	require.ErrorContains(t, err, "exceeds limit")
}

func TestRecordOrder_TransactionError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{txErr: errors.New("conditional check failed")})
	var o domain.Order
	o.AddLine("Sugar", 1, 15)
	_, err := c.RecordOrder(context.Background(), domain.PlacedOrder{ID: "ORD-1", Order: o})
	require.ErrorContains(t, err, "conditional check failed")
}

func TestSaveSession_WritesSnapshotWithTTL(t *testing.T) {
	db := &fakeDynamo{}
	c := mustNewClient(t, db)

	s := domain.NewSession("abc")
	s.State = domain.StateCollectingOrder
	s.Order.AddLine("Sugar", 2, 15)
	require.NoError(t, c.SaveSession(context.Background(), s))

	in := db.lastPutInput
	require.Equal(t, &types.AttributeValueMemberS{Value: "SESSION#abc"}, in.Item["PK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: skState}, in.Item["SK"])
	require.Equal(t, &types.AttributeValueMemberS{Value: "COLLECTING_ORDER"}, in.Item["state"])

	wantTTL := time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC).Unix()
	ttl, err := intAttr(in.Item, "ttl")
	require.NoError(t, err)
	require.EqualValues(t, wantTTL, ttl)

	raw, err := strAttr(in.Item, "snapshot")
	require.NoError(t, err)
	var decoded domain.Session
	require.NoError(t, json.Unmarshal([]byte(raw), &decoded))
	require.Equal(t, 2, decoded.Order.Lines[0].Quantity)
}

func TestSaveSession_RequiresID(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{})
	require.Error(t, c.SaveSession(context.Background(), &domain.Session{}))
	require.Error(t, c.SaveSession(context.Background(), nil))
}

func TestGetSession_DecodesAndRecomputesTotal(t *testing.T) {
	snapshot := `{"id":"abc","state":"CONFIRMING_ORDER","order":{"items":[{"flavor":"Sugar","quantity":3,"unitPrice":15}],"total":999}}`
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item("PK", "SESSION#abc", "SK", skState, "snapshot", snapshot)}}
	c := mustNewClient(t, db)

	s, err := c.GetSession(context.Background(), "abc")
	require.NoError(t, err)
	require.Equal(t, domain.StateConfirmingOrder, s.State)
	require.InDelta(t, 45.0, s.Order.Total, 1e-9)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGetSession_NotFound(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getOut: &dynamodb.GetItemOutput{}})
	s, err := c.GetSession(context.Background(), "nope")
	require.NoError(t, err)
	require.Nil(t, s)
}

func TestGetSession_RejectsCorruptSnapshot(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: item("snapshot", `{"id":"abc","state":"DANCING"}`)}}
	c := mustNewClient(t, db)
	_, err := c.GetSession(context.Background(), "abc")
	require.ErrorContains(t, err, "unknown session state")

	db.getOut = &dynamodb.GetItemOutput{Item: item("snapshot", `{broken`)}
	_, err = c.GetSession(context.Background(), "abc")
	require.ErrorContains(t, err, "decode snapshot")
}

func TestGetSession_GetError(t *testing.T) {
	c := mustNewClient(t, &fakeDynamo{getErr: errors.New("boom")})
	_, err := c.GetSession(context.Background(), "abc")
	require.ErrorContains(t, err, "boom")
}

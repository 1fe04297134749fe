package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"order-agent/internal/domain"
)

// GetSession loads and validates the latest snapshot of a session. It
// returns nil without error when the session does not exist.
func (c *Client) GetSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	out, err := c.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(c.tableName),
		Key: map[string]types.AttributeValue{
			"PK": sAttr(sessionPK(sessionID)),
			"SK": sAttr(skState),
		},
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("repository: GetSession get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return nil, nil
	}

	raw, err := strAttr(out.Item, "snapshot")
	if err != nil {
		return nil, fmt.Errorf("repository: GetSession: %w", err)
	}
	var s domain.Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("repository: GetSession decode snapshot: %w", err)
	}
	if err := s.Normalize(); err != nil {
		return nil, fmt.Errorf("repository: GetSession: %w", err)
	}
	return &s, nil
}

// SaveSession replaces the session snapshot and refreshes its TTL.
func (c *Client) SaveSession(ctx context.Context, s *domain.Session) error {
	if s == nil || s.ID == "" {
		return errors.New("repository: SaveSession: session id is required")
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("repository: SaveSession encode snapshot: %w", err)
	}
	now := c.now()
	_, err = c.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(c.tableName),
		Item: map[string]types.AttributeValue{
			"PK":           sAttr(sessionPK(s.ID)),
			"SK":           sAttr(skState),
			"sessionId":    sAttr(s.ID),
			"state":        sAttr(string(s.State)),
			"snapshot":     sAttr(string(raw)),
			"lastActivity": sAttr(now.UTC().Format(time.RFC3339)),
			"ttl":          intValue(ttlValue(now)),
		},
	})
	if err != nil {
		return fmt.Errorf("repository: SaveSession: %w", err)
	}
	return nil
}

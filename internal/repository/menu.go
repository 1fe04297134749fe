package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"golang.org/x/sync/errgroup"

	"order-agent/internal/domain"
)

// LoadMenu reads the catalog partition (products and aliases) and the FAQ
// partition in parallel. Products and FAQ entries keep the order given by
// their "position" attribute, falling back to sort-key order.
func (c *Client) LoadMenu(ctx context.Context) (*domain.Menu, error) {
	var catalogItems, faqItems []map[string]types.AttributeValue

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		items, err := c.queryPartition(gctx, pkCatalog)
		catalogItems = items
		return err
	})
	g.Go(func() error {
		items, err := c.queryPartition(gctx, pkFAQ)
		faqItems = items
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("repository: LoadMenu: %w", err)
	}

	var menu domain.Menu
	var productPos []int
	for _, item := range catalogItems {
		sk := optStrAttr(item, "SK")
		switch {
		case strings.HasPrefix(sk, skPrefixProduct):
			p, err := itemToProduct(item)
			if err != nil {
				return nil, fmt.Errorf("repository: LoadMenu product %q: %w", sk, err)
			}
			menu.Products = append(menu.Products, p)
			productPos = append(productPos, position(item, len(productPos)))
		case strings.HasPrefix(sk, skPrefixAlias):
			alias := optStrAttr(item, "alias")
			if alias == "" {
				alias = strings.TrimPrefix(sk, skPrefixAlias)
			}
			target := optStrAttr(item, "product")
			if alias == "" || target == "" {
				continue
			}
			if menu.Aliases == nil {
				menu.Aliases = make(map[string]string)
			}
			menu.Aliases[alias] = target
		}
	}
	sortByPosition(menu.Products, productPos)

	var entryPos []int
	for _, item := range faqItems {
		if !strings.HasPrefix(optStrAttr(item, "SK"), skPrefixEntry) {
			continue
		}
		e, err := itemToEntry(item)
		if err != nil {
			return nil, fmt.Errorf("repository: LoadMenu faq: %w", err)
		}
		menu.Knowledge = append(menu.Knowledge, e)
		entryPos = append(entryPos, position(item, len(entryPos)))
	}
	sortByPosition(menu.Knowledge, entryPos)
	return &menu, nil
}

// queryPartition returns every item of a partition, following pagination.
func (c *Client) queryPartition(ctx context.Context, pk string) ([]map[string]types.AttributeValue, error) {
	p := dynamodb.NewQueryPaginator(c.api, &dynamodb.QueryInput{
		TableName:              aws.String(c.tableName),
		KeyConditionExpression: aws.String("PK = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": sAttr(pk),
		},
	})
	var items []map[string]types.AttributeValue
	for p.HasMorePages() {
		out, err := p.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("query %s: %w", pk, err)
		}
		items = append(items, out.Items...)
	}
	return items, nil
}

func itemToProduct(item map[string]types.AttributeValue) (domain.Product, error) {
	name, err := strAttr(item, "name")
	if err != nil {
		return domain.Product{}, err
	}
	price, err := floatAttr(item, "price")
	if err != nil {
		return domain.Product{}, err
	}
	id := optStrAttr(item, "id")
	if id == "" {
		id = strings.TrimPrefix(optStrAttr(item, "SK"), skPrefixProduct)
	}
	return domain.Product{
		ID:          id,
		Name:        name,
		Price:       price,
		Unit:        optStrAttr(item, "unit"),
		Description: optStrAttr(item, "description"),
		Ingredients: stringsAttr(item, "ingredients"),
		Available:   boolAttr(item, "available", true),
	}, nil
}

func itemToEntry(item map[string]types.AttributeValue) (domain.KnowledgeEntry, error) {
	q, err := strAttr(item, "question")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	a, err := strAttr(item, "answer")
	if err != nil {
		return domain.KnowledgeEntry{}, err
	}
	return domain.KnowledgeEntry{Question: q, Answer: a, Keywords: stringsAttr(item, "keywords")}, nil
}

// position returns the item's "position" attribute, or fallback when unset.
func position(item map[string]types.AttributeValue, fallback int) int {
	if n, err := intAttr(item, "position"); err == nil {
		return n
	}
	return fallback
}

func sortByPosition[T any](vals []T, pos []int) {
	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return pos[idx[a]] < pos[idx[b]] })
	sorted := make([]T, len(vals))
	for i, j := range idx {
		sorted[i] = vals[j]
	}
	copy(vals, sorted)
}

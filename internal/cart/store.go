package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/sanviii19/My-Shopping-App-sub000/internal/orders"
	"github.com/sanviii19/My-Shopping-App-sub000/internal/redisx"
)

// Store keeps one cart snapshot per buyer in redis as a JSON array.
// The order of items is the order they were added in; checkout processes
// them in exactly that order.
type Store struct{ Redis *redis.Client }

func (s *Store) Get(ctx context.Context, userID string) ([]orders.CartItem, error) {
	key := fmt.Sprintf(redisx.KeyCart, userID)
	raw, err := s.Redis.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var items []orders.CartItem
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, fmt.Errorf("decode cart %s: %w", userID, err)
	}
	return items, nil
}

// Add merges qty into an existing line for the same product, otherwise
// appends a new line at the end.
func (s *Store) Add(ctx context.Context, userID string, item orders.CartItem) error {
	if item.Qty < 1 {
		return fmt.Errorf("invalid qty %d for product %s", item.Qty, item.ProductID)
	}
	items, err := s.Get(ctx, userID)
	if err != nil {
		return err
	}

	merged := false
	for i := range items {
		if items[i].ProductID == item.ProductID {
			items[i].Qty += item.Qty
			merged = true
			break
		}
	}
	if !merged {
		items = append(items, item)
	}
	return s.save(ctx, userID, items)
}

func (s *Store) Clear(ctx context.Context, userID string) error {
	return s.Redis.Del(ctx, fmt.Sprintf(redisx.KeyCart, userID)).Err()
}

func (s *Store) save(ctx context.Context, userID string, items []orders.CartItem) error {
	b, err := json.Marshal(items)
	if err != nil {
		return err
	}
	return s.Redis.Set(ctx, fmt.Sprintf(redisx.KeyCart, userID), b, redisx.TTLCart).Err()
}

package reports

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
)

type ProductRank struct {
	ProductID int64   `json:"product_id"`
	UnitsSold float64 `json:"units_sold"`
	Rank      int     `json:"rank"`
}

// Ranking tracks cumulative units sold per product.
type Ranking interface {
	RecordSale(ctx context.Context, productID int64, quantity int) error
	Top(ctx context.Context, n int64) ([]ProductRank, error)
}

// RedisRanking keeps the bestseller ranking in a Redis sorted set keyed by
// product id, scored by units sold.
type RedisRanking struct {
	client *redis.Client
	key    string
}

func NewRedisRanking(client *redis.Client, key string) *RedisRanking {
	return &RedisRanking{
		client: client,
		key:    key,
	}
}

func (r *RedisRanking) RecordSale(ctx context.Context, productID int64, quantity int) error {
	member := strconv.FormatInt(productID, 10)
	return r.client.ZIncrBy(ctx, r.key, float64(quantity), member).Err()
}

func (r *RedisRanking) Top(ctx context.Context, n int64) ([]ProductRank, error) {
	zs, err := r.client.ZRevRangeWithScores(ctx, r.key, 0, n-1).Result()
	if err != nil {
		return nil, err
	}

	result := make([]ProductRank, 0, len(zs))
	for i, z := range zs {
		productID, err := strconv.ParseInt(z.Member.(string), 10, 64)
		if err != nil {
			continue
		}
		result = append(result, ProductRank{
			ProductID: productID,
			UnitsSold: z.Score,
			Rank:      i + 1,
		})
	}
	return result, nil
}

package core

import "strings"

// bucketKeySeparator joins the bucket key parts. A newline cannot appear
// in a denom, so the key is collision-free.
const bucketKeySeparator = "\n"

// PriceBucketKey derives the sorted-index bucket key for an order:
// order type, base denom and quote denom of the trigger price.
// Market-type orders have no deterministic bucket and are rejected.
func PriceBucketKey(order *Order) (string, error) {
	if order.IsMarket() {
		return "", ErrMarketOrderBucket
	}

	price := order.Price()
	if price == nil {
		return "", ErrMarketOrderBucket
	}

	return string(order.Type()) + bucketKeySeparator +
		price.BaseDenom + bucketKeySeparator +
		price.QuoteDenom, nil
}

// SplitBucketKey recovers the order type and trading pair from a bucket
// key produced by PriceBucketKey.
func SplitBucketKey(key string) (orderType OrderType, baseDenom, quoteDenom string, ok bool) {
	parts := strings.SplitN(key, bucketKeySeparator, 3)
	if len(parts) != 3 {
		return "", "", "", false
	}
	return OrderType(parts[0]), parts[1], parts[2], true
}

package store

import (
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
)

// EncodeAttribute converts a value into a DynamoDB attribute. Decimals map
// to number attributes using their exact string form; maps and slices are
// encoded recursively so nested cost breakdowns keep decimal precision all
// the way down. Other values fall back to the SDK marshaler.
func EncodeAttribute(value any) (types.AttributeValue, error) {
	switch v := value.(type) {
	case decimal.Decimal:
		return &types.AttributeValueMemberN{Value: v.String()}, nil
	case string:
		return &types.AttributeValueMemberS{Value: v}, nil
	case bool:
		return &types.AttributeValueMemberBOOL{Value: v}, nil
	case int:
		return &types.AttributeValueMemberN{Value: strconv.Itoa(v)}, nil
	case int64:
		return &types.AttributeValueMemberN{Value: strconv.FormatInt(v, 10)}, nil
	case map[string]any:
		m := make(map[string]types.AttributeValue, len(v))
		for key, inner := range v {
			encoded, err := EncodeAttribute(inner)
			if err != nil {
				return nil, fmt.Errorf("key %s: %w", key, err)
			}
			m[key] = encoded
		}
		return &types.AttributeValueMemberM{Value: m}, nil
	case []any:
		l := make([]types.AttributeValue, len(v))
		for i, inner := range v {
			encoded, err := EncodeAttribute(inner)
			if err != nil {
				return nil, fmt.Errorf("index %d: %w", i, err)
			}
			l[i] = encoded
		}
		return &types.AttributeValueMemberL{Value: l}, nil
	default:
		return attributevalue.Marshal(value)
	}
}

package dynamo

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"distribution/pkg/domain/model"
)

const (
	attrPK         = "pk"
	attrSK         = "sk"
	attrEntityType = "entityType"
	attrName       = "name"
	attrBody       = "body"
	attrUpdatedAt  = "updatedAt"

	timeLayout = time.RFC3339Nano
)

var reservedAttributes = map[string]bool{
	attrPK: true, attrSK: true, attrEntityType: true, attrName: true, attrBody: true, attrUpdatedAt: true,
}

func keyAttributes(key model.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrPK: &types.AttributeValueMemberS{Value: key.PK},
		attrSK: &types.AttributeValueMemberS{Value: key.SK},
	}
}

// encodeItem lays numeric fields out as top-level N attributes so that
// UpdateItem ADD can increment them in place.
func encodeItem(item model.Item) (map[string]types.AttributeValue, error) {
	av := keyAttributes(item.Key)
	av[attrEntityType] = &types.AttributeValueMemberS{Value: item.Category}
	av[attrBody] = &types.AttributeValueMemberS{Value: string(item.Body)}
	av[attrUpdatedAt] = &types.AttributeValueMemberS{Value: item.UpdatedAt.UTC().Format(timeLayout)}
	// Index key attributes cannot be empty strings.
	if item.Name != "" {
		av[attrName] = &types.AttributeValueMemberS{Value: item.Name}
	}
	for field, value := range item.Numbers {
		if reservedAttributes[field] {
			return nil, errors.Errorf("numeric field %q collides with a reserved attribute", field)
		}
		av[field] = &types.AttributeValueMemberN{Value: value.String()}
	}
	return av, nil
}

func decodeItem(av map[string]types.AttributeValue) (model.Item, error) {
	var item model.Item
	for name, value := range av {
		switch name {
		case attrPK:
			item.PK = stringValue(value)
		case attrSK:
			item.SK = stringValue(value)
		case attrEntityType:
			item.Category = stringValue(value)
		case attrName:
			item.Name = stringValue(value)
		case attrBody:
			item.Body = []byte(stringValue(value))
		case attrUpdatedAt:
			if raw := stringValue(value); raw != "" {
				t, err := time.Parse(timeLayout, raw)
				if err != nil {
					return model.Item{}, errors.Wrapf(err, "parse %s", attrUpdatedAt)
				}
				item.UpdatedAt = t.UTC()
			}
		default:
			n, ok := value.(*types.AttributeValueMemberN)
			if !ok {
				continue
			}
			d, err := decimal.NewFromString(n.Value)
			if err != nil {
				return model.Item{}, errors.Wrapf(err, "parse numeric attribute %s", name)
			}
			if item.Numbers == nil {
				item.Numbers = make(map[string]decimal.Decimal)
			}
			item.Numbers[name] = d
		}
	}
	return item, nil
}

func decodeItems(avs []map[string]types.AttributeValue) ([]model.Item, error) {
	items := make([]model.Item, 0, len(avs))
	for _, av := range avs {
		item, err := decodeItem(av)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, nil
}

func stringValue(value types.AttributeValue) string {
	if s, ok := value.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

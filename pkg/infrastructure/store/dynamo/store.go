// Package dynamo stores every record in one DynamoDB table: partition key
// "pk", sort key "sk", and a secondary index on entityType + name used by the
// category listings.
package dynamo

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"distribution/pkg/domain/model"
)

// API is the subset of *dynamodb.Client the store uses.
type API interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

type Config struct {
	Table         string
	CategoryIndex string
}

type Store struct {
	client API
	config Config
}

var _ model.ItemStore = (*Store)(nil)

func NewStore(client API, cfg Config) *Store {
	return &Store{client: client, config: cfg}
}

// NewClient builds a client from the default credential chain. A non-empty
// endpoint points it at dynamodb-local or another compatible service.
func NewClient(ctx context.Context, region, endpoint string) (*dynamodb.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion(region))
	if err != nil {
		return nil, errors.Wrap(err, "load aws config")
	}
	return dynamodb.NewFromConfig(cfg, func(o *dynamodb.Options) {
		if endpoint != "" {
			o.BaseEndpoint = aws.String(endpoint)
		}
	}), nil
}

func (s *Store) Put(ctx context.Context, item model.Item) error {
	av, err := encodeItem(item)
	if err != nil {
		return err
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.config.Table),
		Item:      av,
	})
	if err != nil {
		return &model.StoreError{Op: "put", Err: err}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key model.Key) (*model.Item, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.config.Table),
		Key:            keyAttributes(key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, &model.StoreError{Op: "get", Err: err}
	}
	if len(out.Item) == 0 {
		return nil, model.ErrItemNotFound
	}
	item, err := decodeItem(out.Item)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) IncrementNumericField(ctx context.Context, key model.Key, field string, delta decimal.Decimal, at time.Time) (*model.Item, error) {
	if reservedAttributes[field] {
		return nil, errors.Errorf("field %q is not numeric", field)
	}
	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.config.Table),
		Key:                 keyAttributes(key),
		UpdateExpression:    aws.String("ADD #field :delta SET #updatedAt = :updatedAt"),
		ConditionExpression: aws.String("attribute_exists(#pk)"),
		ExpressionAttributeNames: map[string]string{
			"#field":     field,
			"#updatedAt": attrUpdatedAt,
			"#pk":        attrPK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":delta":     &types.AttributeValueMemberN{Value: delta.String()},
			":updatedAt": &types.AttributeValueMemberS{Value: at.UTC().Format(timeLayout)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return nil, model.ErrItemNotFound
		}
		return nil, &model.StoreError{Op: "increment", Err: err}
	}
	item, err := decodeItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

// ReplaceBody conditions the update on the updatedAt value the caller read. A
// failed condition returns the old item only when one exists, which tells a
// missing item apart from a concurrent change.
func (s *Store) ReplaceBody(ctx context.Context, key model.Key, name string, body []byte, expected, at time.Time) (*model.Item, error) {
	names := map[string]string{
		"#pk":        attrPK,
		"#body":      attrBody,
		"#updatedAt": attrUpdatedAt,
		"#name":      attrName,
	}
	values := map[string]types.AttributeValue{
		":body":      &types.AttributeValueMemberS{Value: string(body)},
		":updatedAt": &types.AttributeValueMemberS{Value: at.UTC().Format(timeLayout)},
		":expected":  &types.AttributeValueMemberS{Value: expected.UTC().Format(timeLayout)},
	}
	update := "SET #body = :body, #updatedAt = :updatedAt"
	if name != "" {
		update += ", #name = :name"
		values[":name"] = &types.AttributeValueMemberS{Value: name}
	} else {
		update += " REMOVE #name"
	}

	out, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(s.config.Table),
		Key:                       keyAttributes(key),
		UpdateExpression:                    aws.String(update),
		ConditionExpression:                 aws.String("attribute_exists(#pk) AND #updatedAt = :expected"),
		ExpressionAttributeNames:            names,
		ExpressionAttributeValues:           values,
		ReturnValues:                        types.ReturnValueAllNew,
		ReturnValuesOnConditionCheckFailure: types.ReturnValuesOnConditionCheckFailureAllOld,
	})
	if err != nil {
		var conditionFailed *types.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			if len(conditionFailed.Item) == 0 {
				return nil, model.ErrItemNotFound
			}
			return nil, model.ErrItemConflict
		}
		return nil, &model.StoreError{Op: "replace", Err: err}
	}
	item, err := decodeItem(out.Attributes)
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (s *Store) QueryByPrefix(ctx context.Context, pk, skPrefix string, limit int, newestFirst bool) ([]model.Item, error) {
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.Table),
		KeyConditionExpression: aws.String("#pk = :pk AND begins_with(#sk, :prefix)"),
		ExpressionAttributeNames: map[string]string{
			"#pk": attrPK,
			"#sk": attrSK,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: pk},
			":prefix": &types.AttributeValueMemberS{Value: skPrefix},
		},
		ScanIndexForward: aws.Bool(!newestFirst),
		ConsistentRead:   aws.Bool(true),
	}, limit)
}

func (s *Store) QueryByCategory(ctx context.Context, category string, limit int) ([]model.Item, error) {
	return s.query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.config.Table),
		IndexName:              aws.String(s.config.CategoryIndex),
		KeyConditionExpression: aws.String("#type = :type"),
		ExpressionAttributeNames: map[string]string{
			"#type": attrEntityType,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":type": &types.AttributeValueMemberS{Value: category},
		},
	}, limit)
}

// query follows LastEvaluatedKey until limit items are collected or the result is exhausted.
func (s *Store) query(ctx context.Context, input *dynamodb.QueryInput, limit int) ([]model.Item, error) {
	if limit > 0 {
		input.Limit = aws.Int32(int32(limit))
	}

	var items []model.Item
	paginator := dynamodb.NewQueryPaginator(s.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, &model.StoreError{Op: "query", Err: err}
		}
		decoded, err := decodeItems(page.Items)
		if err != nil {
			return nil, err
		}
		items = append(items, decoded...)
		if limit > 0 && len(items) >= limit {
			return items[:limit], nil
		}
	}
	return items, nil
}

// TableAPI is the subset of *dynamodb.Client needed to provision the table.
type TableAPI interface {
	CreateTable(ctx context.Context, params *dynamodb.CreateTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error)
}

// CreateTable provisions the single table with its category index. An
// already existing table is not an error.
func CreateTable(ctx context.Context, client TableAPI, cfg Config) error {
	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName:   aws.String(cfg.Table),
		BillingMode: types.BillingModePayPerRequest,
		AttributeDefinitions: []types.AttributeDefinition{
			{AttributeName: aws.String(attrPK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrSK), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrEntityType), AttributeType: types.ScalarAttributeTypeS},
			{AttributeName: aws.String(attrName), AttributeType: types.ScalarAttributeTypeS},
		},
		KeySchema: []types.KeySchemaElement{
			{AttributeName: aws.String(attrPK), KeyType: types.KeyTypeHash},
			{AttributeName: aws.String(attrSK), KeyType: types.KeyTypeRange},
		},
		GlobalSecondaryIndexes: []types.GlobalSecondaryIndex{{
			IndexName: aws.String(cfg.CategoryIndex),
			KeySchema: []types.KeySchemaElement{
				{AttributeName: aws.String(attrEntityType), KeyType: types.KeyTypeHash},
				{AttributeName: aws.String(attrName), KeyType: types.KeyTypeRange},
			},
			Projection: &types.Projection{ProjectionType: types.ProjectionTypeAll},
		}},
	})
	var inUse *types.ResourceInUseException
	if errors.As(err, &inUse) {
		log.WithField("table", cfg.Table).Info("table already exists")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "create table %s", cfg.Table)
	}
	log.WithField("table", cfg.Table).Info("table created")
	return nil
}

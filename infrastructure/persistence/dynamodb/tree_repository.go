package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"valuetree/domain/core/aggregates"
	"valuetree/domain/core/entities"
	"valuetree/domain/core/valueobjects"
	pkgerrors "valuetree/pkg/errors"
	"valuetree/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const (
	entityTypeTree = "TREE"
	treeSortKey    = "TREE"
)

// API is the subset of the DynamoDB client the repositories use
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// TreeRepository stores one item per project holding the whole tree
type TreeRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
}

// NewTreeRepository creates a new TreeRepository
func NewTreeRepository(client API, tableName string, logger *zap.Logger) *TreeRepository {
	return &TreeRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
	}
}

// treeItem represents the DynamoDB item structure for a project tree.
// The tree itself is kept as its JSON document.
type treeItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	ProjectID  string `dynamodbav:"ProjectID"`
	Payload    string `dynamodbav:"Payload"`
	NodeCount  int    `dynamodbav:"NodeCount"`
	Version    int    `dynamodbav:"Version"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

func projectPK(projectID valueobjects.ProjectID) string {
	return fmt.Sprintf("PROJECT#%s", projectID.String())
}

func treeKey(projectID valueobjects.ProjectID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
		"SK": &types.AttributeValueMemberS{Value: treeSortKey},
	}
}

// GetOrCreate loads the project's tree, creating it with a conditional put
// when absent. A lost race re-reads the winner's tree.
func (r *TreeRepository) GetOrCreate(ctx context.Context, projectID valueobjects.ProjectID, rootName string) (*aggregates.Tree, error) {
	tree, err := r.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if tree != nil {
		return tree, nil
	}

	tree, err = aggregates.NewTree(projectID, rootName)
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build default tree").WithCause(err)
	}

	err = r.putNew(ctx, tree)
	if err == nil {
		return tree, nil
	}
	if !pkgerrors.IsConflict(err) {
		return nil, err
	}

	r.logger.Debug("Tree created concurrently, re-reading",
		zap.String("projectID", projectID.String()),
	)
	tree, err = r.get(ctx, projectID)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, pkgerrors.NewDatabaseError("get tree", errors.New("tree vanished after concurrent create"))
	}
	return tree, nil
}

// Create stores a new tree, failing with CONFLICT if the project exists
func (r *TreeRepository) Create(ctx context.Context, tree *aggregates.Tree) (*aggregates.Tree, error) {
	if err := r.putNew(ctx, tree); err != nil {
		return nil, err
	}

	r.logger.Info("Created project tree",
		zap.String("projectID", tree.ProjectID().String()),
		zap.String("PK", projectPK(tree.ProjectID())),
	)
	return tree, nil
}

// Replace writes the whole tree in one UpdateItem. The stored version is
// incremented atomically and checked against expectedVersion when it is
// non-zero.
func (r *TreeRepository) Replace(ctx context.Context, tree *aggregates.Tree, expectedVersion int) (*aggregates.Tree, error) {
	payload, err := json.Marshal(tree.Root())
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to encode tree").WithCause(err)
	}

	now := utils.FormatTimestamp(time.Now())
	created := tree.CreatedAt()
	if created.IsZero() {
		created = time.Now()
	}

	update := expression.Set(expression.Name("Payload"), expression.Value(string(payload))).
		Set(expression.Name("NodeCount"), expression.Value(tree.Root().Count())).
		Set(expression.Name("EntityType"), expression.Value(entityTypeTree)).
		Set(expression.Name("ProjectID"), expression.Value(tree.ProjectID().String())).
		Set(expression.Name("UpdatedAt"), expression.Value(now)).
		Set(expression.Name("CreatedAt"), expression.IfNotExists(
			expression.Name("CreatedAt"), expression.Value(utils.FormatTimestamp(created)))).
		Add(expression.Name("Version"), expression.Value(1))

	builder := expression.NewBuilder().WithUpdate(update)
	if expectedVersion > 0 {
		builder = builder.WithCondition(expression.Name("Version").Equal(expression.Value(expectedVersion)))
	}

	expr, err := builder.Build()
	if err != nil {
		return nil, pkgerrors.NewInternalError("failed to build update expression").WithCause(err)
	}

	result, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       treeKey(tree.ProjectID()),
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ReturnValues:              types.ReturnValueAllNew,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, pkgerrors.NewConflictError(
				fmt.Sprintf("tree %s is not at version %d", tree.ProjectID(), expectedVersion)).
				WithDetails(map[string]interface{}{"expected_version": expectedVersion})
		}
		r.logger.Error("Failed to replace tree",
			zap.String("projectID", tree.ProjectID().String()),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDatabaseError("replace tree", err)
	}

	var item treeItem
	if err := attributevalue.UnmarshalMap(result.Attributes, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree", err)
	}

	r.logger.Debug("Replaced project tree",
		zap.String("projectID", tree.ProjectID().String()),
		zap.Int("version", item.Version),
		zap.Int("nodeCount", item.NodeCount),
	)
	return item.toAggregate(tree.ProjectID())
}

// Exists reports whether a tree is stored for the project
func (r *TreeRepository) Exists(ctx context.Context, projectID valueobjects.ProjectID) (bool, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(r.tableName),
		Key:                  treeKey(projectID),
		ProjectionExpression: aws.String("PK"),
	})
	if err != nil {
		return false, pkgerrors.NewDatabaseError("check tree", err)
	}
	return len(result.Item) > 0, nil
}

// get returns nil without error when the project has no tree
func (r *TreeRepository) get(ctx context.Context, projectID valueobjects.ProjectID) (*aggregates.Tree, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            treeKey(projectID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		r.logger.Error("Failed to get tree",
			zap.String("projectID", projectID.String()),
			zap.Error(err),
		)
		return nil, pkgerrors.NewDatabaseError("get tree", err)
	}
	if len(result.Item) == 0 {
		return nil, nil
	}

	var item treeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree", err)
	}
	return item.toAggregate(projectID)
}

func (r *TreeRepository) putNew(ctx context.Context, tree *aggregates.Tree) error {
	item, err := newTreeItem(tree)
	if err != nil {
		return err
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal tree").WithCause(err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.NewInternalError("failed to build condition").WithCause(err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(r.tableName),
		Item:                     av,
		ConditionExpression:      expr.Condition(),
		ExpressionAttributeNames: expr.Names(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError(fmt.Sprintf("project %s already exists", tree.ProjectID()))
		}
		return pkgerrors.NewDatabaseError("create tree", err)
	}
	return nil
}

func newTreeItem(tree *aggregates.Tree) (treeItem, error) {
	payload, err := json.Marshal(tree.Root())
	if err != nil {
		return treeItem{}, pkgerrors.NewInternalError("failed to encode tree").WithCause(err)
	}
	return treeItem{
		PK:         projectPK(tree.ProjectID()),
		SK:         treeSortKey,
		EntityType: entityTypeTree,
		ProjectID:  tree.ProjectID().String(),
		Payload:    string(payload),
		NodeCount:  tree.Root().Count(),
		Version:    tree.Version(),
		CreatedAt:  utils.FormatTimestamp(tree.CreatedAt()),
		UpdatedAt:  utils.FormatTimestamp(tree.UpdatedAt()),
	}, nil
}

func (item treeItem) toAggregate(projectID valueobjects.ProjectID) (*aggregates.Tree, error) {
	var root entities.Node
	if err := json.Unmarshal([]byte(item.Payload), &root); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree payload", err)
	}

	createdAt, err := utils.ParseTimestamp(item.CreatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree timestamps", err)
	}
	updatedAt, err := utils.ParseTimestamp(item.UpdatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("decode tree timestamps", err)
	}

	tree, err := aggregates.ReconstructTree(projectID, &root, item.Version, createdAt, updatedAt)
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("reconstruct tree", err)
	}
	return tree, nil
}

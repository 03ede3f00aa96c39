package dynamodb

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"valuetree/domain/core/valueobjects"
	"valuetree/domain/decomposition"
	pkgerrors "valuetree/pkg/errors"
	"valuetree/pkg/utils"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"
)

const entityTypeSession = "DECOMPOSITION_SESSION"

// WorkflowRepository stores decomposition sessions in their own table.
// Expired items are removed by the table's TTL on the TTL attribute.
type WorkflowRepository struct {
	client    API
	tableName string
	logger    *zap.Logger
	now       func() time.Time
}

// NewWorkflowRepository creates a new WorkflowRepository
func NewWorkflowRepository(client API, tableName string, logger *zap.Logger) *WorkflowRepository {
	return &WorkflowRepository{
		client:    client,
		tableName: tableName,
		logger:    logger,
		now:       time.Now,
	}
}

type sessionItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	State      string `dynamodbav:"State"`
	Payload    string `dynamodbav:"Payload"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
	TTL        int64  `dynamodbav:"TTL,omitempty"`
}

func sessionKey(projectID valueobjects.ProjectID, sessionToken string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: projectPK(projectID)},
		"SK": &types.AttributeValueMemberS{Value: fmt.Sprintf("SESSION#%s", sessionToken)},
	}
}

// Save writes the workflow. A non-positive ttl never expires.
func (r *WorkflowRepository) Save(ctx context.Context, sessionToken string, workflow *decomposition.Workflow, ttl time.Duration) error {
	payload, err := json.Marshal(workflow)
	if err != nil {
		return pkgerrors.NewInternalError("failed to encode workflow").WithCause(err)
	}

	now := r.now()
	item := sessionItem{
		PK:         projectPK(workflow.ProjectID),
		SK:         fmt.Sprintf("SESSION#%s", sessionToken),
		EntityType: entityTypeSession,
		State:      string(workflow.State),
		Payload:    string(payload),
		UpdatedAt:  utils.FormatTimestamp(now),
	}
	if ttl > 0 {
		item.TTL = now.Add(ttl).Unix()
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return pkgerrors.NewInternalError("failed to marshal session").WithCause(err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		r.logger.Error("Failed to save decomposition session",
			zap.String("projectID", workflow.ProjectID.String()),
			zap.Error(err),
		)
		return pkgerrors.NewDatabaseError("save session", err)
	}
	return nil
}

// Get loads a session. Items past their TTL are treated as absent since
// DynamoDB deletes them lazily.
func (r *WorkflowRepository) Get(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) (*decomposition.Workflow, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            sessionKey(projectID, sessionToken),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, pkgerrors.NewDatabaseError("get session", err)
	}
	if len(result.Item) == 0 {
		return nil, pkgerrors.NewNotFoundError("decomposition session")
	}

	var item sessionItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode session", err)
	}
	if item.TTL > 0 && r.now().Unix() > item.TTL {
		return nil, pkgerrors.NewNotFoundError("decomposition session")
	}

	var w decomposition.Workflow
	if err := json.Unmarshal([]byte(item.Payload), &w); err != nil {
		return nil, pkgerrors.NewDatabaseError("decode session payload", err)
	}
	return &w, nil
}

// Delete removes a session. Deleting an absent session is not an error.
func (r *WorkflowRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, sessionToken string) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       sessionKey(projectID, sessionToken),
	}); err != nil {
		return pkgerrors.NewDatabaseError("delete session", err)
	}
	return nil
}

package dynamodb

import (
	"context"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/entities"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

const agentSKPrefix = "AGENT#"

// chatItem is the DynamoDB shape of one chat message.
type chatItem struct {
	ID        string `dynamodbav:"ID"`
	AgentID   string `dynamodbav:"AgentID,omitempty"`
	Role      string `dynamodbav:"Role"`
	Text      string `dynamodbav:"Text"`
	Timestamp string `dynamodbav:"Timestamp"`
}

// agentItem is the DynamoDB shape of an agent record.
type agentItem struct {
	PK           string     `dynamodbav:"PK"`
	SK           string     `dynamodbav:"SK"`
	EntityType   string     `dynamodbav:"EntityType"`
	AgentID      string     `dynamodbav:"AgentID"`
	ProjectID    string     `dynamodbav:"ProjectID"`
	AgentType    string     `dynamodbav:"AgentType"`
	Status       string     `dynamodbav:"Status,omitempty"`
	Draft        string     `dynamodbav:"Draft,omitempty"`
	ThumbnailURL string     `dynamodbav:"ThumbnailURL,omitempty"`
	StorageID    string     `dynamodbav:"StorageID,omitempty"`
	Connections  []string   `dynamodbav:"Connections,omitempty"`
	LastPrompt   string     `dynamodbav:"LastPrompt,omitempty"`
	ChatHistory  []chatItem `dynamodbav:"ChatHistory,omitempty"`
	CreatedAt    string     `dynamodbav:"CreatedAt"`
	UpdatedAt    string     `dynamodbav:"UpdatedAt"`
}

// AgentRepository implements ports.AgentRepository on DynamoDB.
type AgentRepository struct {
	client *Client
	logger *zap.Logger
}

var _ ports.AgentRepository = (*AgentRepository)(nil)

// NewAgentRepository creates a DynamoDB-backed agent repository.
func NewAgentRepository(client *Client, logger *zap.Logger) *AgentRepository {
	return &AgentRepository{client: client, logger: logger}
}

func (r *AgentRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.AgentRecord, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
			And(expression.Key("SK").BeginsWith(agentSKPrefix))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to build agent query", err)
	}

	out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.client.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, mapError(err, "list agents")
	}

	records := make([]ports.AgentRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var ai agentItem
		if err := attributevalue.UnmarshalMap(item, &ai); err != nil {
			r.logger.Warn("Skipping unreadable agent item", zap.Error(err))
			continue
		}
		records = append(records, ai.toRecord())
	}
	return records, nil
}

func (r *AgentRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) (*ports.AgentRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": agentSKPrefix + id.String(),
	})
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to marshal agent key", err)
	}

	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	if err != nil {
		return nil, mapError(err, "get agent")
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("agent")
	}

	var ai agentItem
	if err := attributevalue.UnmarshalMap(out.Item, &ai); err != nil {
		return nil, pkgerrors.NewInternal("failed to unmarshal agent item", err)
	}
	record := ai.toRecord()
	return &record, nil
}

func (r *AgentRepository) Save(ctx context.Context, record ports.AgentRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	connections := make([]string, len(record.Connections))
	for i, c := range record.Connections {
		connections[i] = c.String()
	}
	history := make([]chatItem, len(record.ChatHistory))
	for i, m := range record.ChatHistory {
		history[i] = chatItem{
			ID:        m.ID,
			AgentID:   m.AgentID.String(),
			Role:      string(m.Role),
			Text:      m.Text,
			Timestamp: m.Timestamp.Format(time.RFC3339Nano),
		}
	}

	item, err := attributevalue.MarshalMap(agentItem{
		PK:           projectPK(record.ProjectID),
		SK:           agentSKPrefix + record.ID.String(),
		EntityType:   "AGENT",
		AgentID:      record.ID.String(),
		ProjectID:    record.ProjectID.String(),
		AgentType:    string(record.Type),
		Status:       string(record.Status),
		Draft:        record.Draft,
		ThumbnailURL: record.ThumbnailURL,
		StorageID:    record.StorageID,
		Connections:  connections,
		LastPrompt:   record.LastPrompt,
		ChatHistory:  history,
		CreatedAt:    record.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:    record.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal agent item", err)
	}

	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.client.table),
		Item:      item,
	})
	return mapError(err, "save agent")
}

// UpdateConnections overwrites only the connections attribute, leaving
// concurrent draft updates untouched.
func (r *AgentRepository) UpdateConnections(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID, connections []valueobjects.ForeignID) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": agentSKPrefix + id.String(),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal agent key", err)
	}

	values := make([]string, len(connections))
	for i, c := range connections {
		values[i] = c.String()
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("Connections"), expression.Value(values)).
			Set(expression.Name("UpdatedAt"), expression.Value(time.Now().Format(time.RFC3339Nano)))).
		WithCondition(expression.AttributeExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return pkgerrors.NewInternal("failed to build connections update", err)
	}

	_, err = r.client.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.client.table),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return mapError(err, "update agent connections")
}

func (r *AgentRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.AgentID) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": agentSKPrefix + id.String(),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal agent key", err)
	}

	_, err = r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	return mapError(err, "delete agent")
}

func (ai agentItem) toRecord() ports.AgentRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, ai.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, ai.UpdatedAt)

	connections := make([]valueobjects.ForeignID, len(ai.Connections))
	for i, c := range ai.Connections {
		connections[i] = valueobjects.ForeignID(c)
	}
	history := make([]entities.ChatMessage, len(ai.ChatHistory))
	for i, m := range ai.ChatHistory {
		ts, _ := time.Parse(time.RFC3339Nano, m.Timestamp)
		history[i] = entities.ChatMessage{
			ID:        m.ID,
			AgentID:   valueobjects.AgentID(m.AgentID),
			Role:      entities.ChatRole(m.Role),
			Text:      m.Text,
			Timestamp: ts,
		}
	}

	return ports.AgentRecord{
		ID:           valueobjects.AgentID(ai.AgentID),
		ProjectID:    valueobjects.ProjectID(ai.ProjectID),
		Type:         entities.AgentType(ai.AgentType),
		Status:       entities.AgentStatus(ai.Status),
		Draft:        ai.Draft,
		ThumbnailURL: ai.ThumbnailURL,
		StorageID:    ai.StorageID,
		Connections:  connections,
		LastPrompt:   ai.LastPrompt,
		ChatHistory:  history,
		CreatedAt:    createdAt,
		UpdatedAt:    updatedAt,
	}
}

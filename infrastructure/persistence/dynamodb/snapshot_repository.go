package dynamodb

import (
	"context"
	"encoding/json"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"go.uber.org/zap"

	"canvas-backend/application/ports"
	"canvas-backend/domain/core/valueobjects"
	pkgerrors "canvas-backend/pkg/errors"
)

const snapshotSK = "SNAPSHOT"

// snapshotDocument is the JSON body stored inside the snapshot item. Layout
// structure changes often; keeping it as one JSON document avoids DynamoDB
// schema churn. The viewport lives in separate attributes so its debounced
// channel can write without touching the document.
type snapshotDocument struct {
	Nodes []ports.SnapshotNode `json:"nodes"`
	Edges []ports.SnapshotEdge `json:"edges"`
}

// snapshotItem is the DynamoDB shape of a canvas snapshot.
type snapshotItem struct {
	PK           string  `dynamodbav:"PK"`
	SK           string  `dynamodbav:"SK"`
	EntityType   string  `dynamodbav:"EntityType"`
	ProjectID    string  `dynamodbav:"ProjectID"`
	Document     string  `dynamodbav:"Document"`
	ViewportX    float64 `dynamodbav:"ViewportX"`
	ViewportY    float64 `dynamodbav:"ViewportY"`
	ViewportZoom float64 `dynamodbav:"ViewportZoom"`
	HasViewport  bool    `dynamodbav:"HasViewport"`
	UpdatedAt    string  `dynamodbav:"UpdatedAt"`
}

// SnapshotRepository implements ports.SnapshotRepository on DynamoDB.
type SnapshotRepository struct {
	client *Client
	logger *zap.Logger
}

var _ ports.SnapshotRepository = (*SnapshotRepository)(nil)

// NewSnapshotRepository creates a DynamoDB-backed snapshot repository.
func NewSnapshotRepository(client *Client, logger *zap.Logger) *SnapshotRepository {
	return &SnapshotRepository{client: client, logger: logger}
}

func (r *SnapshotRepository) Load(ctx context.Context, projectID valueobjects.ProjectID) (*ports.CanvasSnapshot, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": snapshotSK,
	})
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to marshal snapshot key", err)
	}

	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	if err != nil {
		return nil, mapError(err, "get snapshot")
	}
	if out.Item == nil {
		// A project that was never saved has no snapshot; not an error.
		return nil, nil
	}

	var si snapshotItem
	if err := attributevalue.UnmarshalMap(out.Item, &si); err != nil {
		return nil, pkgerrors.NewInternal("failed to unmarshal snapshot item", err)
	}

	var doc snapshotDocument
	if si.Document != "" {
		if err := json.Unmarshal([]byte(si.Document), &doc); err != nil {
			return nil, pkgerrors.NewInternal("failed to decode snapshot document", err)
		}
	}

	updatedAt, _ := time.Parse(time.RFC3339Nano, si.UpdatedAt)
	snapshot := &ports.CanvasSnapshot{
		ProjectID: projectID,
		Nodes:     doc.Nodes,
		Edges:     doc.Edges,
		UpdatedAt: updatedAt,
	}
	if si.HasViewport {
		snapshot.Viewport = &valueobjects.Viewport{X: si.ViewportX, Y: si.ViewportY, Zoom: si.ViewportZoom}
	}
	return snapshot, nil
}

func (r *SnapshotRepository) Save(ctx context.Context, snapshot ports.CanvasSnapshot) error {
	doc, err := json.Marshal(snapshotDocument{Nodes: snapshot.Nodes, Edges: snapshot.Edges})
	if err != nil {
		return pkgerrors.NewInternal("failed to encode snapshot document", err)
	}

	si := snapshotItem{
		PK:         projectPK(snapshot.ProjectID),
		SK:         snapshotSK,
		EntityType: "SNAPSHOT",
		ProjectID:  snapshot.ProjectID.String(),
		Document:   string(doc),
		UpdatedAt:  time.Now().Format(time.RFC3339Nano),
	}
	if snapshot.Viewport != nil {
		si.ViewportX = snapshot.Viewport.X
		si.ViewportY = snapshot.Viewport.Y
		si.ViewportZoom = snapshot.Viewport.Zoom
		si.HasViewport = true
	}

	item, err := attributevalue.MarshalMap(si)
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal snapshot item", err)
	}

	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.client.table),
		Item:      item,
	})
	return mapError(err, "save snapshot")
}

// SaveViewport updates only the viewport attributes, creating the item when
// the project has no snapshot yet.
func (r *SnapshotRepository) SaveViewport(ctx context.Context, projectID valueobjects.ProjectID, viewport valueobjects.Viewport) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": snapshotSK,
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal snapshot key", err)
	}

	expr, err := expression.NewBuilder().
		WithUpdate(expression.
			Set(expression.Name("ViewportX"), expression.Value(viewport.X)).
			Set(expression.Name("ViewportY"), expression.Value(viewport.Y)).
			Set(expression.Name("ViewportZoom"), expression.Value(viewport.Zoom)).
			Set(expression.Name("HasViewport"), expression.Value(true)).
			Set(expression.Name("UpdatedAt"), expression.Value(time.Now().Format(time.RFC3339Nano)))).
		Build()
	if err != nil {
		return pkgerrors.NewInternal("failed to build viewport update", err)
	}

	_, err = r.client.db.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.client.table),
		Key:                       key,
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	return mapError(err, "save viewport")
}

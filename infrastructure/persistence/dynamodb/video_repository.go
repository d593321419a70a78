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

const videoSKPrefix = "VIDEO#"

// videoItem is the DynamoDB shape of a video record.
type videoItem struct {
	PK                 string  `dynamodbav:"PK"`
	SK                 string  `dynamodbav:"SK"`
	EntityType         string  `dynamodbav:"EntityType"`
	VideoID            string  `dynamodbav:"VideoID"`
	ProjectID          string  `dynamodbav:"ProjectID"`
	Title              string  `dynamodbav:"Title"`
	MediaURL           string  `dynamodbav:"MediaURL"`
	Duration           float64 `dynamodbav:"Duration"`
	TranscriptionState string  `dynamodbav:"TranscriptionState"`
	TranscriptionText  string  `dynamodbav:"TranscriptionText,omitempty"`
	CreatedAt          string  `dynamodbav:"CreatedAt"`
	UpdatedAt          string  `dynamodbav:"UpdatedAt"`
}

// VideoRepository implements ports.VideoRepository on DynamoDB.
type VideoRepository struct {
	client *Client
	logger *zap.Logger
}

var _ ports.VideoRepository = (*VideoRepository)(nil)

// NewVideoRepository creates a DynamoDB-backed video repository.
func NewVideoRepository(client *Client, logger *zap.Logger) *VideoRepository {
	return &VideoRepository{client: client, logger: logger}
}

func (r *VideoRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.VideoRecord, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
			And(expression.Key("SK").BeginsWith(videoSKPrefix))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to build video query", err)
	}

	out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.client.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, mapError(err, "list videos")
	}

	records := make([]ports.VideoRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var vi videoItem
		if err := attributevalue.UnmarshalMap(item, &vi); err != nil {
			r.logger.Warn("Skipping unreadable video item", zap.Error(err))
			continue
		}
		records = append(records, vi.toRecord())
	}
	return records, nil
}

func (r *VideoRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) (*ports.VideoRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": videoSKPrefix + id.String(),
	})
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to marshal video key", err)
	}

	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	if err != nil {
		return nil, mapError(err, "get video")
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("video")
	}

	var vi videoItem
	if err := attributevalue.UnmarshalMap(out.Item, &vi); err != nil {
		return nil, pkgerrors.NewInternal("failed to unmarshal video item", err)
	}
	record := vi.toRecord()
	return &record, nil
}

func (r *VideoRepository) Save(ctx context.Context, record ports.VideoRecord) error {
	now := time.Now()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now

	item, err := attributevalue.MarshalMap(videoItem{
		PK:                 projectPK(record.ProjectID),
		SK:                 videoSKPrefix + record.ID.String(),
		EntityType:         "VIDEO",
		VideoID:            record.ID.String(),
		ProjectID:          record.ProjectID.String(),
		Title:              record.Title,
		MediaURL:           record.MediaURL,
		Duration:           record.Duration,
		TranscriptionState: string(record.TranscriptionState),
		TranscriptionText:  record.TranscriptionText,
		CreatedAt:          record.CreatedAt.Format(time.RFC3339Nano),
		UpdatedAt:          record.UpdatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal video item", err)
	}

	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.client.table),
		Item:      item,
	})
	return mapError(err, "save video")
}

func (r *VideoRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.VideoID) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": videoSKPrefix + id.String(),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal video key", err)
	}

	_, err = r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	return mapError(err, "delete video")
}

func (vi videoItem) toRecord() ports.VideoRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, vi.CreatedAt)
	updatedAt, _ := time.Parse(time.RFC3339Nano, vi.UpdatedAt)
	state := entities.TranscriptionState(vi.TranscriptionState)
	if state == "" {
		state = entities.TranscriptionNone
	}
	return ports.VideoRecord{
		ID:                 valueobjects.VideoID(vi.VideoID),
		ProjectID:          valueobjects.ProjectID(vi.ProjectID),
		Title:              vi.Title,
		MediaURL:           vi.MediaURL,
		Duration:           vi.Duration,
		TranscriptionState: state,
		TranscriptionText:  vi.TranscriptionText,
		CreatedAt:          createdAt,
		UpdatedAt:          updatedAt,
	}
}

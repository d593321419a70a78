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

const transcriptionSKPrefix = "TRANSCRIPTION#"

// segmentItem is the DynamoDB shape of one transcript segment.
type segmentItem struct {
	Start float64 `dynamodbav:"Start"`
	End   float64 `dynamodbav:"End"`
	Text  string  `dynamodbav:"Text"`
}

// transcriptionItem is the DynamoDB shape of a transcription record.
type transcriptionItem struct {
	PK         string        `dynamodbav:"PK"`
	SK         string        `dynamodbav:"SK"`
	EntityType string        `dynamodbav:"EntityType"`
	ID         string        `dynamodbav:"TranscriptionID"`
	ProjectID  string        `dynamodbav:"ProjectID"`
	VideoID    string        `dynamodbav:"VideoID,omitempty"`
	FileName   string        `dynamodbav:"FileName"`
	Format     string        `dynamodbav:"Format"`
	FullText   string        `dynamodbav:"FullText"`
	Segments   []segmentItem `dynamodbav:"Segments,omitempty"`
	WordCount  int           `dynamodbav:"WordCount"`
	Duration   float64       `dynamodbav:"Duration"`
	CreatedAt  string        `dynamodbav:"CreatedAt"`
}

// TranscriptionRepository implements ports.TranscriptionRepository on DynamoDB.
type TranscriptionRepository struct {
	client *Client
	logger *zap.Logger
}

var _ ports.TranscriptionRepository = (*TranscriptionRepository)(nil)

// NewTranscriptionRepository creates a DynamoDB-backed transcription repository.
func NewTranscriptionRepository(client *Client, logger *zap.Logger) *TranscriptionRepository {
	return &TranscriptionRepository{client: client, logger: logger}
}

func (r *TranscriptionRepository) ListByProject(ctx context.Context, projectID valueobjects.ProjectID) ([]ports.TranscriptionRecord, error) {
	expr, err := expression.NewBuilder().
		WithKeyCondition(expression.Key("PK").Equal(expression.Value(projectPK(projectID))).
			And(expression.Key("SK").BeginsWith(transcriptionSKPrefix))).
		Build()
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to build transcription query", err)
	}

	out, err := r.client.db.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.client.table),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		return nil, mapError(err, "list transcriptions")
	}

	records := make([]ports.TranscriptionRecord, 0, len(out.Items))
	for _, item := range out.Items {
		var ti transcriptionItem
		if err := attributevalue.UnmarshalMap(item, &ti); err != nil {
			r.logger.Warn("Skipping unreadable transcription item", zap.Error(err))
			continue
		}
		records = append(records, ti.toRecord())
	}
	return records, nil
}

func (r *TranscriptionRepository) FindByID(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) (*ports.TranscriptionRecord, error) {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": transcriptionSKPrefix + id.String(),
	})
	if err != nil {
		return nil, pkgerrors.NewInternal("failed to marshal transcription key", err)
	}

	out, err := r.client.db.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	if err != nil {
		return nil, mapError(err, "get transcription")
	}
	if out.Item == nil {
		return nil, pkgerrors.NewNotFound("transcription")
	}

	var ti transcriptionItem
	if err := attributevalue.UnmarshalMap(out.Item, &ti); err != nil {
		return nil, pkgerrors.NewInternal("failed to unmarshal transcription item", err)
	}
	record := ti.toRecord()
	return &record, nil
}

func (r *TranscriptionRepository) Save(ctx context.Context, record ports.TranscriptionRecord) error {
	if record.CreatedAt.IsZero() {
		record.CreatedAt = time.Now()
	}

	segments := make([]segmentItem, len(record.Segments))
	for i, s := range record.Segments {
		segments[i] = segmentItem{Start: s.Start, End: s.End, Text: s.Text}
	}

	item, err := attributevalue.MarshalMap(transcriptionItem{
		PK:         projectPK(record.ProjectID),
		SK:         transcriptionSKPrefix + record.ID.String(),
		EntityType: "TRANSCRIPTION",
		ID:         record.ID.String(),
		ProjectID:  record.ProjectID.String(),
		VideoID:    record.VideoID.String(),
		FileName:   record.FileName,
		Format:     record.Format,
		FullText:   record.FullText,
		Segments:   segments,
		WordCount:  record.WordCount,
		Duration:   record.Duration,
		CreatedAt:  record.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal transcription item", err)
	}

	_, err = r.client.db.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.client.table),
		Item:      item,
	})
	return mapError(err, "save transcription")
}

func (r *TranscriptionRepository) Delete(ctx context.Context, projectID valueobjects.ProjectID, id valueobjects.TranscriptionID) error {
	key, err := attributevalue.MarshalMap(map[string]string{
		"PK": projectPK(projectID),
		"SK": transcriptionSKPrefix + id.String(),
	})
	if err != nil {
		return pkgerrors.NewInternal("failed to marshal transcription key", err)
	}

	_, err = r.client.db.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.client.table),
		Key:       key,
	})
	return mapError(err, "delete transcription")
}

func (ti transcriptionItem) toRecord() ports.TranscriptionRecord {
	createdAt, _ := time.Parse(time.RFC3339Nano, ti.CreatedAt)

	segments := make([]entities.Segment, len(ti.Segments))
	for i, s := range ti.Segments {
		segments[i] = entities.Segment{Start: s.Start, End: s.End, Text: s.Text}
	}

	return ports.TranscriptionRecord{
		ID:        valueobjects.TranscriptionID(ti.ID),
		ProjectID: valueobjects.ProjectID(ti.ProjectID),
		VideoID:   valueobjects.VideoID(ti.VideoID),
		FileName:  ti.FileName,
		Format:    ti.Format,
		FullText:  ti.FullText,
		Segments:  segments,
		WordCount: ti.WordCount,
		Duration:  ti.Duration,
		CreatedAt: createdAt,
	}
}

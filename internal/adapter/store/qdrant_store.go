package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"zappy-core/internal/domain/entity"
	"zappy-core/internal/logging"
)

// QdrantStore keeps recommendation batches keyed by the embedding of the preferences that produced them.
type QdrantStore struct {
	client         *qdrant.Client
	collectionName string
	freshness      time.Duration
}

func NewQdrantStore(client *qdrant.Client, collectionName string, freshness time.Duration) *QdrantStore {
	if freshness <= 0 {
		freshness = 24 * time.Hour
	}
	return &QdrantStore{
		client:         client,
		collectionName: collectionName,
		freshness:      freshness,
	}
}

// InitCollection creates the collection and its payload indexes if missing.
func (s *QdrantStore) InitCollection(ctx context.Context, dim uint64) error {
	_, err := s.client.GetCollectionInfo(ctx, s.collectionName)
	if err != nil {
		st, ok := status.FromError(err)
		if !ok || st.Code() != codes.NotFound {
			return fmt.Errorf("get collection info: %w", err)
		}
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collectionName,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return fmt.Errorf("failed to create collection: %w", err)
		}
		logging.Info().Str("collection", s.collectionName).Msg("[QDRANT] Created collection")
	}

	indexes := []struct {
		field string
		typ   qdrant.FieldType
	}{
		{"created_at", qdrant.FieldType_FieldTypeInteger},
		{"category", qdrant.FieldType_FieldTypeKeyword},
	}
	for _, idx := range indexes {
		_, err = s.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: s.collectionName,
			FieldName:      idx.field,
			FieldType:      idx.typ.Enum(),
			Wait:           qdrant.PtrOf(true),
		})
		if err != nil {
			// Already existing indexes are reported as errors.
			logging.Debug().Err(err).Str("field", idx.field).Msg("[QDRANT] Could not create payload index")
		}
	}
	return nil
}

// Search returns the closest fresh point matching every filter, or nil when none scores above threshold.
func (s *QdrantStore) Search(ctx context.Context, vector []float32, threshold float32, filters map[string]string) (*entity.AIResponse, float32, string, error) {
	mustConditions := make([]*qdrant.Condition, 0, len(filters)+1)
	for key, value := range filters {
		mustConditions = append(mustConditions, qdrant.NewMatch(key, value))
	}

	cutoff := time.Now().Add(-s.freshness).Unix()
	mustConditions = append(mustConditions, qdrant.NewRange("created_at", &qdrant.Range{
		Gte: qdrant.PtrOf(float64(cutoff)),
	}))

	res, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collectionName,
		Query:          qdrant.NewQuery(vector...),
		Filter:         &qdrant.Filter{Must: mustConditions},
		Limit:          qdrant.PtrOf(uint64(1)),
		WithPayload:    qdrant.NewWithPayload(true),
		ScoreThreshold: &threshold,
	})
	if err != nil {
		return nil, 0, "", fmt.Errorf("query points: %w", err)
	}
	if len(res) == 0 {
		return nil, 0, "", nil
	}

	hit := res[0]
	payload := hit.Payload
	response := &entity.AIResponse{
		Content: payload["content"].GetStringValue(),
		Cached:  true,
	}
	return response, hit.Score, payload["prompt"].GetStringValue(), nil
}

func (s *QdrantStore) Save(ctx context.Context, prompt string, resp *entity.AIResponse, vector []float32, metadata map[string]any) error {
	payload := map[string]any{
		"prompt":     prompt,
		"content":    resp.Content,
		"created_at": time.Now().Unix(),
	}
	for k, v := range metadata {
		payload[k] = v
	}

	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collectionName,
		Points: []*qdrant.PointStruct{
			{
				Id:      qdrant.NewIDUUID(uuid.NewString()),
				Vectors: qdrant.NewVectors(vector...),
				Payload: qdrant.NewValueMap(payload),
			},
		},
	})
	if err != nil {
		return fmt.Errorf("upsert point: %w", err)
	}
	return nil
}

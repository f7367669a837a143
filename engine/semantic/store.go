// Package semantic owns the Qdrant collection that indexes articles by
// embedding for topic and free-text search.
package semantic

import (
	"context"
	"fmt"

	"github.com/astrobio/progression/engine/domain"
	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// pointsAPI is the subset of pb.PointsClient the store uses.
type pointsAPI interface {
	Upsert(ctx context.Context, in *pb.UpsertPoints, opts ...grpc.CallOption) (*pb.PointsOperationResponse, error)
	Search(ctx context.Context, in *pb.SearchPoints, opts ...grpc.CallOption) (*pb.SearchResponse, error)
}

// collectionsAPI is the subset of pb.CollectionsClient the store uses.
type collectionsAPI interface {
	List(ctx context.Context, in *pb.ListCollectionsRequest, opts ...grpc.CallOption) (*pb.ListCollectionsResponse, error)
	Create(ctx context.Context, in *pb.CreateCollection, opts ...grpc.CallOption) (*pb.CollectionOperationResponse, error)
}

// VectorStore is the sole owner of all Qdrant operations.
type VectorStore struct {
	conn        *grpc.ClientConn
	points      pointsAPI
	collections collectionsAPI
	collection  string
}

// New creates a VectorStore connected to Qdrant at the given gRPC address.
func New(addr string, collection string) (*VectorStore, error) {
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("semantic: dial qdrant %s: %w", addr, err)
	}
	return &VectorStore{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  collection,
	}, nil
}

// NewWithClients builds a VectorStore over pre-made clients (tests).
func NewWithClients(points pointsAPI, collections collectionsAPI, collection string) *VectorStore {
	return &VectorStore{points: points, collections: collections, collection: collection}
}

// Close closes the underlying gRPC connection.
func (v *VectorStore) Close() error {
	if v.conn == nil {
		return nil
	}
	return v.conn.Close()
}

// EnsureCollection creates the collection if it doesn't exist.
func (v *VectorStore) EnsureCollection(ctx context.Context, dims int) error {
	list, err := v.collections.List(ctx, &pb.ListCollectionsRequest{})
	if err != nil {
		return fmt.Errorf("semantic: list collections: %w", err)
	}
	for _, c := range list.GetCollections() {
		if c.GetName() == v.collection {
			return nil
		}
	}

	_, err = v.collections.Create(ctx, &pb.CreateCollection{
		CollectionName: v.collection,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(dims),
					Distance: pb.Distance_Cosine,
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("semantic: create collection %s: %w", v.collection, err)
	}
	return nil
}

// PointID maps an article key to a stable Qdrant point id, so re-indexing
// an article overwrites its previous vector.
func PointID(articleKey string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte("astrobio:article:"+articleKey)).String()
}

// Upsert stores article vectors.
func (v *VectorStore) Upsert(ctx context.Context, records []ArticleRecord) error {
	if len(records) == 0 {
		return nil
	}

	points := make([]*pb.PointStruct, len(records))
	for i, r := range records {
		points[i] = &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(r.Article.Key())},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: r.Embedding},
				},
			},
			Payload: articlePayload(r),
		}
	}

	wait := true
	_, err := v.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: v.collection,
		Wait:           &wait,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("semantic: upsert %d points: %w", len(records), err)
	}
	return nil
}

// SearchArticles performs k-NN similarity search, optionally restricted to
// articles tagged with topic.
func (v *VectorStore) SearchArticles(ctx context.Context, embedding []float32, limit int, topic string) ([]ArticleHit, error) {
	req := &pb.SearchPoints{
		CollectionName: v.collection,
		Vector:         embedding,
		Limit:          uint64(limit),
		WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
	}
	if topic != "" {
		req.Filter = &pb.Filter{Must: []*pb.Condition{fieldMatch("topics", topic)}}
	}

	resp, err := v.points.Search(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("semantic: search: %w", err)
	}

	hits := make([]ArticleHit, len(resp.GetResult()))
	for i, r := range resp.GetResult() {
		hits[i] = ArticleHit{Article: articleFromPayload(r.GetPayload()), Score: r.GetScore()}
	}
	return hits, nil
}

func articlePayload(r ArticleRecord) map[string]*pb.Value {
	a := r.Article
	return map[string]*pb.Value{
		"id":        stringValue(a.Key()),
		"title":     stringValue(a.Title),
		"author":    stringValue(a.Author),
		"link":      stringValue(a.Link),
		"summary":   stringValue(a.Summary),
		"image_ref": stringValue(a.ImageRef),
		"keywords":  listValue(a.Keywords),
		"topics":    listValue(r.Topics),
	}
}

func articleFromPayload(p map[string]*pb.Value) domain.Article {
	return domain.Article{
		ID:       p["id"].GetStringValue(),
		Title:    p["title"].GetStringValue(),
		Author:   p["author"].GetStringValue(),
		Link:     p["link"].GetStringValue(),
		Summary:  p["summary"].GetStringValue(),
		ImageRef: p["image_ref"].GetStringValue(),
		Keywords: stringList(p["keywords"]),
	}
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}

func listValue(items []string) *pb.Value {
	vals := make([]*pb.Value, len(items))
	for i, s := range items {
		vals[i] = stringValue(s)
	}
	return &pb.Value{Kind: &pb.Value_ListValue{ListValue: &pb.ListValue{Values: vals}}}
}

func stringList(v *pb.Value) []string {
	vals := v.GetListValue().GetValues()
	out := make([]string, 0, len(vals))
	for _, x := range vals {
		out = append(out, x.GetStringValue())
	}
	return out
}

func fieldMatch(key, value string) *pb.Condition {
	return &pb.Condition{
		ConditionOneOf: &pb.Condition_Field{
			Field: &pb.FieldCondition{
				Key: key,
				Match: &pb.Match{
					MatchValue: &pb.Match_Keyword{Keyword: value},
				},
			},
		},
	}
}

package mongodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Up-to-code/facbbok2/internal/domain"
)

const postsCounter = "posts"

type postDoc struct {
	ID            string    `bson:"_id"`
	Seq           int64     `bson:"seq"`
	UserID        string    `bson:"userId"`
	Content       string    `bson:"content"`
	ImageURL      string    `bson:"imageUrl,omitempty"`
	Likes         []string  `bson:"likes"`
	LikesCount    int64     `bson:"likesCount"`
	CreatedAt     time.Time `bson:"createdAt"`
	LikedByViewer bool      `bson:"likedByViewer,omitempty"`
}

func (d postDoc) toDomain() domain.Post {
	return domain.Post{
		ID:            d.ID,
		UserID:        d.UserID,
		Content:       d.Content,
		ImageURL:      d.ImageURL,
		LikesCount:    d.LikesCount,
		LikedByViewer: d.LikedByViewer,
		Seq:           d.Seq,
		CreatedAt:     d.CreatedAt.UTC(),
	}
}

// nextSeq hands out post sequence numbers from the counters collection.
func (s *Store) nextSeq(ctx context.Context, name string) (int64, error) {
	var out struct {
		Value int64 `bson:"value"`
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	err := s.col(colCounters).FindOneAndUpdate(ctx, bson.M{"_id": name}, bson.M{"$inc": bson.M{"value": int64(1)}}, opts).Decode(&out)
	if err != nil {
		return 0, fmt.Errorf("next %s seq: %w", name, err)
	}
	return out.Value, nil
}

func (s *Store) CreatePost(ctx context.Context, p domain.Post) (domain.Post, error) {
	if _, err := s.GetUserByID(ctx, p.UserID); err != nil {
		return domain.Post{}, err
	}
	seq, err := s.nextSeq(ctx, postsCounter)
	if err != nil {
		return domain.Post{}, err
	}
	d := postDoc{
		ID:        p.ID,
		Seq:       seq,
		UserID:    p.UserID,
		Content:   p.Content,
		ImageURL:  p.ImageURL,
		Likes:     []string{},
		CreatedAt: p.CreatedAt,
	}
	if _, err := s.col(colPosts).InsertOne(ctx, d); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return domain.Post{}, domain.ErrAlreadyExists
		}
		return domain.Post{}, fmt.Errorf("create post: %w", err)
	}
	return d.toDomain(), nil
}

// postStages projects likedByViewer and drops the like set from results.
func postStages(viewerID string) mongo.Pipeline {
	return mongo.Pipeline{
		{{Key: "$addFields", Value: bson.M{
			"likedByViewer": bson.M{"$in": bson.A{viewerID, bson.M{"$ifNull": bson.A{"$likes", bson.A{}}}}},
		}}},
		{{Key: "$project", Value: bson.M{"likes": 0}}},
	}
}

func (s *Store) aggregatePosts(ctx context.Context, pipeline mongo.Pipeline) ([]domain.Post, error) {
	cur, err := s.col(colPosts).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	defer cur.Close(ctx)

	out := []domain.Post{}
	for cur.Next(ctx) {
		var d postDoc
		if err := cur.Decode(&d); err != nil {
			return nil, fmt.Errorf("decode post: %w", err)
		}
		out = append(out, d.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return out, nil
}

func (s *Store) GetPost(ctx context.Context, postID, viewerID string) (domain.Post, error) {
	pipeline := append(mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"_id": postID}}},
	}, postStages(viewerID)...)

	posts, err := s.aggregatePosts(ctx, pipeline)
	if err != nil {
		return domain.Post{}, err
	}
	if len(posts) == 0 {
		return domain.Post{}, domain.ErrNotFound
	}
	return posts[0], nil
}

func (s *Store) ListPosts(ctx context.Context, viewerID string, beforeSeq int64, limit int, filter domain.FeedFilter) ([]domain.Post, error) {
	match := bson.M{}
	if beforeSeq > 0 {
		match["seq"] = bson.M{"$lt": beforeSeq}
	}
	switch filter {
	case domain.FeedFilterLiked:
		match["likes"] = viewerID
	case domain.FeedFilterNotLiked:
		match["likes"] = bson.M{"$ne": viewerID}
	}

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "seq", Value: -1}}}},
		{{Key: "$limit", Value: int64(limit)}},
	}
	return s.aggregatePosts(ctx, append(pipeline, postStages(viewerID)...))
}

func (s *Store) IsLiked(ctx context.Context, postID, viewerID string) (bool, error) {
	p, err := s.GetPost(ctx, postID, viewerID)
	if err != nil {
		return false, err
	}
	return p.LikedByViewer, nil
}

// likeUpdate builds the filter and update for one like or unlike. The filter
// only matches when membership actually changes, so repeating a like or
// unlike leaves the counter alone. Unlike always drops the viewer and clamps
// the counter at zero.
func likeUpdate(postID, viewerID string, liked bool) (bson.M, any) {
	if liked {
		return bson.M{"_id": postID, "likes": bson.M{"$ne": viewerID}}, bson.M{
			"$addToSet": bson.M{"likes": viewerID},
			"$inc":      bson.M{"likesCount": int64(1)},
		}
	}
	return bson.M{"_id": postID, "likes": viewerID}, mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "likes", Value: bson.M{"$filter": bson.M{
				"input": "$likes",
				"cond":  bson.M{"$ne": bson.A{"$$this", viewerID}},
			}}},
			{Key: "likesCount", Value: bson.M{"$max": bson.A{
				int64(0),
				bson.M{"$subtract": bson.A{"$likesCount", int64(1)}},
			}}},
		}}},
	}
}

// SetLike moves like-set membership and likesCount in one document update.
func (s *Store) SetLike(ctx context.Context, postID, viewerID string, liked bool) (domain.LikeChange, error) {
	filter, update := likeUpdate(postID, viewerID, liked)
	opts := options.FindOneAndUpdate().
		SetReturnDocument(options.After).
		SetProjection(bson.M{"likesCount": 1})

	var d postDoc
	err := s.col(colPosts).FindOneAndUpdate(ctx, filter, update, opts).Decode(&d)
	if err == nil {
		return domain.LikeChange{Liked: liked, LikesCount: d.LikesCount, Changed: true}, nil
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return domain.LikeChange{}, fmt.Errorf("update like: %w", err)
	}

	err = s.col(colPosts).FindOne(ctx, bson.M{"_id": postID}, options.FindOne().SetProjection(bson.M{"likesCount": 1})).Decode(&d)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return domain.LikeChange{}, domain.ErrNotFound
		}
		return domain.LikeChange{}, fmt.Errorf("load post: %w", err)
	}
	return domain.LikeChange{Liked: liked, LikesCount: d.LikesCount}, nil
}

package mongo

import (
	"context"
	"encoding/json"
	"errors"

	"go.mongodb.org/mongo-driver/bson"
	mongodrv "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/fastygo/taskboard/domain"
	"github.com/fastygo/taskboard/repository"
)

// Each collection stores {_id, data}; merges become $set on dotted data paths.
type documentRepository struct {
	db *mongodrv.Database
}

type storedDocument struct {
	ID   string `bson:"_id"`
	Data bson.M `bson:"data"`
}

// NewDocumentStore returns a MongoDB-backed DocumentStore.
func NewDocumentStore(db *mongodrv.Database) repository.DocumentStore {
	return &documentRepository{db: db}
}

func (r *documentRepository) Load(ctx context.Context, collection, id string) (json.RawMessage, error) {
	var doc storedDocument
	if err := r.db.Collection(collection).FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongodrv.ErrNoDocuments) {
			return nil, domain.ErrDocumentNotFound
		}
		return nil, err
	}
	return encodeData(doc.Data)
}

func (r *documentRepository) Save(ctx context.Context, collection, id string, patch json.RawMessage, merge bool) error {
	if id == "" || len(patch) == 0 {
		return domain.ErrInvalidPayload
	}
	var value map[string]interface{}
	if err := json.Unmarshal(patch, &value); err != nil {
		return domain.WrapError(domain.ErrCodeInvalid, "invalid document", err)
	}

	coll := r.db.Collection(collection)
	if !merge {
		_, err := coll.ReplaceOne(ctx,
			bson.M{"_id": id},
			bson.M{"_id": id, "data": value},
			options.Replace().SetUpsert(true),
		)
		return err
	}

	set, unset := bson.M{}, bson.M{}
	flattenPatch("data", value, set, unset)
	update := bson.M{}
	if len(set) > 0 {
		update["$set"] = set
	}
	if len(unset) > 0 {
		update["$unset"] = unset
	}
	if len(update) == 0 {
		update["$setOnInsert"] = bson.M{"data": bson.M{}}
	}
	_, err := coll.UpdateOne(ctx, bson.M{"_id": id}, update, options.Update().SetUpsert(true))
	return err
}

func (r *documentRepository) List(ctx context.Context, collection string) ([]repository.Document, error) {
	cursor, err := r.db.Collection(collection).Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var docs []repository.Document
	for cursor.Next(ctx) {
		var doc storedDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		data, err := encodeData(doc.Data)
		if err != nil {
			return nil, err
		}
		docs = append(docs, repository.Document{ID: doc.ID, Data: data})
	}
	return docs, cursor.Err()
}

// flattenPatch turns nested objects into dotted $set paths so sibling keys survive the merge.
// Arrays and scalars are set whole; null values go to $unset.
func flattenPatch(prefix string, value map[string]interface{}, set, unset bson.M) {
	for key, v := range value {
		path := prefix + "." + key
		if v == nil {
			unset[path] = ""
			continue
		}
		if nested, ok := v.(map[string]interface{}); ok && len(nested) > 0 {
			flattenPatch(path, nested, set, unset)
			continue
		}
		set[path] = v
	}
}

func encodeData(data bson.M) (json.RawMessage, error) {
	if data == nil {
		return json.RawMessage(`{}`), nil
	}
	raw, err := bson.MarshalExtJSON(data, false, false)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

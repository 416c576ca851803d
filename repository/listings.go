package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/Tharoon321/go-rentals/models"
)

// ListingsCollection is the MongoDB collection holding listings.
const ListingsCollection = "posts"

// ListingRepository stores listings in MongoDB.
type ListingRepository struct {
	col *mongo.Collection
}

func NewListingRepository(db *mongo.Database) *ListingRepository {
	return &ListingRepository{col: db.Collection(ListingsCollection)}
}

// EnsureIndexes indexes listings by owner email.
func (r *ListingRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.col.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetName("idx_owner_email"),
	})
	if err != nil {
		return fmt.Errorf("create posts index: %w", err)
	}
	return nil
}

func (r *ListingRepository) Create(ctx context.Context, l *models.Listing) error {
	now := time.Now().UTC()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	l.CreatedAt = now
	l.UpdatedAt = now

	if _, err := r.col.InsertOne(ctx, l); err != nil {
		return fmt.Errorf("insert listing: %w", err)
	}
	return nil
}

// List returns every listing, newest first.
func (r *ListingRepository) List(ctx context.Context) ([]models.Listing, error) {
	cursor, err := r.col.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}}))
	if err != nil {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	defer cursor.Close(ctx)

	listings := []models.Listing{}
	if err := cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("decode listings: %w", err)
	}
	return listings, nil
}

// FindByID returns the listing with the given hex id. Malformed ids are
// reported as ErrNotFound.
func (r *ListingRepository) FindByID(ctx context.Context, id string) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	var l models.Listing
	if err := r.col.FindOne(ctx, bson.M{"_id": oid}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find listing: %w", err)
	}
	return &l, nil
}

// Update applies patch with $set and returns the stored document after the
// update.
func (r *ListingRepository) Update(ctx context.Context, id string, patch models.ListingPatch) (*models.Listing, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrNotFound
	}

	set := patchDoc(patch)
	set["updatedAt"] = time.Now().UTC()

	var l models.Listing
	err = r.col.FindOneAndUpdate(ctx,
		bson.M{"_id": oid},
		bson.M{"$set": set},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&l)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("update listing: %w", err)
	}
	return &l, nil
}

// Delete removes the listing if it exists. Unknown and malformed ids are not
// an error.
func (r *ListingRepository) Delete(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil
	}
	if _, err := r.col.DeleteOne(ctx, bson.M{"_id": oid}); err != nil {
		return fmt.Errorf("delete listing: %w", err)
	}
	return nil
}

func patchDoc(p models.ListingPatch) bson.M {
	set := bson.M{}
	if p.Place != nil {
		set["place"] = *p.Place
	}
	if p.Area != nil {
		set["area"] = *p.Area
	}
	if p.NoOfBedrooms != nil {
		set["noOfBedrooms"] = *p.NoOfBedrooms
	}
	if p.NoOfBathrooms != nil {
		set["noOfBathrooms"] = *p.NoOfBathrooms
	}
	if p.Hospital != nil {
		set["hospital"] = *p.Hospital
	}
	if p.CollegeNearBy != nil {
		set["collegeNearBy"] = *p.CollegeNearBy
	}
	if p.Rent != nil {
		set["rent"] = *p.Rent
	}
	if p.Furnished != nil {
		set["furnished"] = *p.Furnished
	}
	if p.Parking != nil {
		set["parking"] = *p.Parking
	}
	if p.Pet != nil {
		set["pet"] = *p.Pet
	}
	if p.Description != nil {
		set["description"] = *p.Description
	}
	if p.Ratings != nil {
		set["ratings"] = *p.Ratings
	}
	return set
}

package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Listing is a rental advertisement created by a seller.
type Listing struct {
	ID            primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Place         string             `bson:"place,omitempty" json:"place,omitempty"` // blob reference
	Area          string             `bson:"area" json:"area"`
	NoOfBedrooms  int                `bson:"noOfBedrooms" json:"noOfBedrooms"`
	NoOfBathrooms int                `bson:"noOfBathrooms" json:"noOfBathrooms"`
	Hospital      string             `bson:"hospital" json:"hospital"`
	CollegeNearBy string             `bson:"collegeNearBy" json:"collegeNearBy"`
	Email         string             `bson:"email" json:"email"` // owner
	Rent          float64            `bson:"rent" json:"rent"`
	Furnished     bool               `bson:"furnished" json:"furnished"`
	Parking       bool               `bson:"parking" json:"parking"`
	Pet           bool               `bson:"pet" json:"pet"`
	Description   string             `bson:"description,omitempty" json:"description,omitempty"`
	Ratings       *float64           `bson:"ratings,omitempty" json:"ratings,omitempty"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt     time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ListingPatch is a partial update; nil fields are left untouched.
type ListingPatch struct {
	Place         *string
	Area          *string
	NoOfBedrooms  *int
	NoOfBathrooms *int
	Hospital      *string
	CollegeNearBy *string
	Rent          *float64
	Furnished     *bool
	Parking       *bool
	Pet           *bool
	Description   *string
	Ratings       *float64
}

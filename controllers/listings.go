package controllers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/Tharoon321/go-rentals/middleware"
	"github.com/Tharoon321/go-rentals/models"
	"github.com/Tharoon321/go-rentals/repository"
)

// photoField is the multipart field carrying the listing photo.
const photoField = "place"

// CreatePostInput is the multipart body for creating a listing
type CreatePostInput struct {
	Area          string   `form:"area" binding:"required"`
	NoOfBedrooms  *int     `form:"noOfBedrooms" binding:"required,min=0"`
	NoOfBathrooms *int     `form:"noOfBathrooms" binding:"required,min=0"`
	Hospital      string   `form:"hospital" binding:"required"`
	CollegeNearBy string   `form:"collegeNearBy" binding:"required"`
	Rent          *float64 `form:"rent" binding:"required,min=0"`
	Furnished     bool     `form:"furnished"`
	Parking       bool     `form:"parking"`
	Pet           bool     `form:"pet"`
	Description   string   `form:"description"`
	Ratings       *float64 `form:"ratings" binding:"omitempty,min=0,max=5"`
}

// EditPostInput allows partial updates, as multipart form or JSON
type EditPostInput struct {
	Area          *string  `form:"area" json:"area"`
	NoOfBedrooms  *int     `form:"noOfBedrooms" json:"noOfBedrooms" binding:"omitempty,min=0"`
	NoOfBathrooms *int     `form:"noOfBathrooms" json:"noOfBathrooms" binding:"omitempty,min=0"`
	Hospital      *string  `form:"hospital" json:"hospital"`
	CollegeNearBy *string  `form:"collegeNearBy" json:"collegeNearBy"`
	Rent          *float64 `form:"rent" json:"rent" binding:"omitempty,min=0"`
	Furnished     *bool    `form:"furnished" json:"furnished"`
	Parking       *bool    `form:"parking" json:"parking"`
	Pet           *bool    `form:"pet" json:"pet"`
	Description   *string  `form:"description" json:"description"`
	Ratings       *float64 `form:"ratings" json:"ratings" binding:"omitempty,min=0,max=5"`
}

func (in EditPostInput) patch() models.ListingPatch {
	return models.ListingPatch{
		Area:          in.Area,
		NoOfBedrooms:  in.NoOfBedrooms,
		NoOfBathrooms: in.NoOfBathrooms,
		Hospital:      in.Hospital,
		CollegeNearBy: in.CollegeNearBy,
		Rent:          in.Rent,
		Furnished:     in.Furnished,
		Parking:       in.Parking,
		Pet:           in.Pet,
		Description:   in.Description,
		Ratings:       in.Ratings,
	}
}

// savePhoto stores the uploaded photo, if the request carries one, and
// returns its reference. A nil reference means no photo was sent.
func (h *Controller) savePhoto(c *gin.Context) (*string, error) {
	fh, err := c.FormFile(photoField)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) || errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	ctx, cancel := reqCtx(c, h.uploadTimeout)
	defer cancel()
	ref, err := h.blobs.Save(ctx, fh.Filename, f)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// discardPhoto removes a photo stored for a write that did not land. It
// runs detached from the request so a cancelled client still gets cleaned up.
func (h *Controller) discardPhoto(c *gin.Context, ref *string) {
	if ref == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), h.uploadTimeout)
	defer cancel()
	if err := h.blobs.Delete(ctx, *ref); err != nil {
		h.log.Warnw("stranded photo", "ref", *ref, "error", err)
	}
}

func (h *Controller) bindError(c *gin.Context, err error) {
	if tooLarge(err) {
		h.respondTooLarge(c)
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"err": err.Error()})
}

func (h *Controller) photoError(c *gin.Context, msg string, err error) {
	if tooLarge(err) {
		h.respondTooLarge(c)
		return
	}
	h.serverError(c, msg, err)
}

// CreatePost creates a listing owned by the caller. Seller only.
func (h *Controller) CreatePost(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "Token not found"})
		return
	}

	var input CreatePostInput
	if err := c.ShouldBind(&input); err != nil {
		h.bindError(c, err)
		return
	}

	ctx, cancel := reqCtx(c, h.writeTimeout)
	owner, err := h.users.FindByEmail(ctx, claims.Email)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"err": "Email id Not Found"})
		return
	}
	if err != nil {
		h.serverError(c, "create post: owner lookup failed", err)
		return
	}

	listing := &models.Listing{
		Area:          input.Area,
		NoOfBedrooms:  *input.NoOfBedrooms,
		NoOfBathrooms: *input.NoOfBathrooms,
		Hospital:      input.Hospital,
		CollegeNearBy: input.CollegeNearBy,
		Email:         owner.Email,
		Rent:          *input.Rent,
		Furnished:     input.Furnished,
		Parking:       input.Parking,
		Pet:           input.Pet,
		Description:   input.Description,
		Ratings:       input.Ratings,
	}

	ref, err := h.savePhoto(c)
	if err != nil {
		h.photoError(c, "create post: photo upload failed", err)
		return
	}
	if ref != nil {
		listing.Place = *ref
	}

	// the upload may have used most of the request's budget
	wctx, wcancel := reqCtx(c, h.writeTimeout)
	defer wcancel()
	if err := h.listings.Create(wctx, listing); err != nil {
		h.discardPhoto(c, ref)
		h.serverError(c, "create post: insert failed", err)
		return
	}

	h.log.Infow("listing created", "id", listing.ID.Hex(), "owner", listing.Email)
	c.JSON(http.StatusOK, gin.H{"msg": "Post Created"})
}

// GetPosts returns every listing, newest first, with the caller's role.
func (h *Controller) GetPosts(c *gin.Context) {
	claims, _ := middleware.CurrentClaims(c)

	ctx, cancel := reqCtx(c, scanTimeout)
	defer cancel()

	posts, err := h.listings.List(ctx)
	if err != nil {
		h.serverError(c, "list posts failed", err)
		return
	}
	if posts == nil {
		posts = []models.Listing{}
	}

	role := ""
	if claims != nil {
		role = claims.Role
	}
	c.JSON(http.StatusOK, gin.H{"post": posts, "role": role})
}

// GetPost fetches a single listing by its hex id
func (h *Controller) GetPost(c *gin.Context) {
	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	post, err := h.listings.FindByID(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": "No Post"})
		return
	}
	if err != nil {
		h.serverError(c, "get post failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"currentPost": post})
}

// EditPost replaces the fields present in the request. The photo changes
// only when a new file is uploaded. Seller only.
func (h *Controller) EditPost(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := reqCtx(c, h.writeTimeout)
	existing, err := h.listings.FindByID(ctx, id)
	cancel()
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"msg": "Post not found"})
		return
	}
	if err != nil {
		h.serverError(c, "edit post: lookup failed", err)
		return
	}
	if !h.mayModify(c, existing) {
		c.JSON(http.StatusForbidden, gin.H{"err": "Unauthorized: Not the owner"})
		return
	}

	var input EditPostInput
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBind(&input); err != nil {
			h.bindError(c, err)
			return
		}
	}
	patch := input.patch()

	ref, err := h.savePhoto(c)
	if err != nil {
		h.photoError(c, "edit post: photo upload failed", err)
		return
	}
	patch.Place = ref

	wctx, wcancel := reqCtx(c, h.writeTimeout)
	defer wcancel()
	updated, err := h.listings.Update(wctx, id, patch)
	if errors.Is(err, repository.ErrNotFound) {
		// deleted between the lookup and the update
		h.discardPhoto(c, ref)
		c.JSON(http.StatusNotFound, gin.H{"msg": "Post not found"})
		return
	}
	if err != nil {
		h.discardPhoto(c, ref)
		h.serverError(c, "edit post: update failed", err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"msg": "Post updated successfully", "post": updated})
}

// DeletePost removes a listing. Unknown ids still report success. Seller
// only.
func (h *Controller) DeletePost(c *gin.Context) {
	id := c.Param("id")

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	if h.opts.EnforceListingOwnership {
		existing, err := h.listings.FindByID(ctx, id)
		switch {
		case err == nil:
			if !h.mayModify(c, existing) {
				c.JSON(http.StatusForbidden, gin.H{"err": "Unauthorized: Not the owner"})
				return
			}
		case !errors.Is(err, repository.ErrNotFound):
			h.serverError(c, "delete post: lookup failed", err)
			return
		}
	}

	if err := h.listings.Delete(ctx, id); err != nil {
		h.serverError(c, "delete post failed", err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "Deleted Successfully"})
}

// mayModify reports whether the caller may edit or delete l.
func (h *Controller) mayModify(c *gin.Context, l *models.Listing) bool {
	if !h.opts.EnforceListingOwnership {
		return true
	}
	claims, ok := middleware.CurrentClaims(c)
	return ok && claims.Email == l.Email
}

package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/Tharoon321/go-rentals/mail"
	"github.com/Tharoon321/go-rentals/middleware"
	"github.com/Tharoon321/go-rentals/repository"
)

// SendDetails mails the seller's contact details to the caller and the
// caller's details to the seller of listing :id. Both messages are always
// attempted and the reply reports each outcome.
func (h *Controller) SendDetails(c *gin.Context) {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"err": "Token not found"})
		return
	}

	ctx, cancel := reqCtx(c, opTimeout)
	defer cancel()

	buyer, err := h.users.FindByEmail(ctx, claims.Email)
	if errors.Is(err, repository.ErrNotFound) {
		h.log.Warnw("send details: buyer not found", "email", claims.Email)
		c.JSON(http.StatusNotFound, gin.H{"err": "Buyer not found"})
		return
	}
	if err != nil {
		h.serverError(c, "send details: buyer lookup failed", err)
		return
	}

	post, err := h.listings.FindByID(ctx, c.Param("id"))
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Error occurred: Post not found"})
		return
	}
	if err != nil {
		h.serverError(c, "send details: post lookup failed", err)
		return
	}

	seller, err := h.users.FindByEmail(ctx, post.Email)
	if errors.Is(err, repository.ErrNotFound) {
		c.JSON(http.StatusBadRequest, gin.H{"err": "Error occurred: Seller not found in User collection"})
		return
	}
	if err != nil {
		h.serverError(c, "send details: seller lookup failed", err)
		return
	}

	mctx, mcancel := reqCtx(c, mailTimeout)
	defer mcancel()

	// plain Group: one failed send must not cancel the other
	var g errgroup.Group
	var buyerNotified, sellerNotified bool
	g.Go(func() error {
		err := h.mailer.Send(mctx, mail.SellerDetailsMessage(buyer.Email, seller))
		buyerNotified = err == nil
		return err
	})
	g.Go(func() error {
		err := h.mailer.Send(mctx, mail.BuyerDetailsMessage(seller.Email, buyer))
		sellerNotified = err == nil
		return err
	})
	if err := g.Wait(); err != nil {
		h.log.Errorw("send details: mail failed",
			"post", post.ID.Hex(),
			"buyerNotified", buyerNotified,
			"sellerNotified", sellerNotified,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"msg":            "Error sending email",
			"buyerNotified":  buyerNotified,
			"sellerNotified": sellerNotified,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"msg":            "Details sent to buyer and seller",
		"buyerNotified":  true,
		"sellerNotified": true,
	})
}

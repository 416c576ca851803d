// Package mail delivers the plain-text notifications the service sends:
// login codes and the contact details exchanged between buyer and seller.
package mail

import (
	"context"
	"fmt"
	"strconv"

	"github.com/Tharoon321/go-rentals/metrics"
	"github.com/Tharoon321/go-rentals/models"
)

// Message kinds, used as a metrics label.
const (
	KindOTP           = "otp"
	KindSellerDetails = "seller_details"
	KindBuyerDetails  = "buyer_details"
)

// Message is a single plain-text email.
type Message struct {
	Kind    string
	To      string
	Subject string
	Body    string
}

// Notifier sends a Message. Implementations must be safe for concurrent use.
type Notifier interface {
	Send(ctx context.Context, msg Message) error
}

func OTPMessage(to, code string) Message {
	return Message{
		Kind:    KindOTP,
		To:      to,
		Subject: "Your OTP Code",
		Body:    "Your OTP code is " + code,
	}
}

// SellerDetailsMessage tells the buyer how to reach the seller.
func SellerDetailsMessage(buyerEmail string, seller *models.User) Message {
	return Message{
		Kind:    KindSellerDetails,
		To:      buyerEmail,
		Subject: "Seller Details",
		Body:    detailsBody("Seller", seller),
	}
}

// BuyerDetailsMessage tells the seller how to reach the buyer.
func BuyerDetailsMessage(sellerEmail string, buyer *models.User) Message {
	return Message{
		Kind:    KindBuyerDetails,
		To:      sellerEmail,
		Subject: "Buyer Details",
		Body:    detailsBody("Buyer", buyer),
	}
}

func detailsBody(who string, u *models.User) string {
	return fmt.Sprintf("The %s Details are:\nFirst Name: %s,\nEmail: %s,\nPhone Number: %s",
		who, u.FirstName, u.Email, strconv.FormatInt(u.PhoneNumber, 10))
}

type instrumented struct {
	next Notifier
}

// WithMetrics counts every Send by kind and outcome.
func WithMetrics(n Notifier) Notifier {
	return instrumented{next: n}
}

func (i instrumented) Send(ctx context.Context, msg Message) error {
	err := i.next.Send(ctx, msg)
	status := "ok"
	if err != nil {
		status = "error"
	}
	kind := msg.Kind
	if kind == "" {
		kind = "other"
	}
	metrics.MailSentTotal.WithLabelValues(kind, status).Inc()
	return err
}

package service

import (
	"net/mail"
	"strconv"
	"strings"

	"github.com/tm-acme-shop/acme-shop-cart-service/internal/errors"
	"github.com/tm-acme-shop/acme-shop-cart-service/internal/models"
)

const (
	maxNameLength    = 150
	minPhoneDigits   = 7
	maxPhoneLength   = 20
	maxCartQuantity  = 999
	maxAddressLength = 500
)

// ValidateContactDetails checks the client data captured at order
// confirmation. Fields are trimmed in place.
func ValidateContactDetails(c *models.ContactDetails) error {
	if c == nil {
		return errors.NewValidationError("contact", "contact details are required")
	}

	c.Name = strings.TrimSpace(c.Name)
	c.LastName = strings.TrimSpace(c.LastName)
	c.Email = strings.TrimSpace(c.Email)
	c.Phone = strings.TrimSpace(c.Phone)
	c.Address = strings.TrimSpace(c.Address)

	if c.Name == "" {
		return errors.NewValidationError("name", "name is required")
	}
	if len(c.Name) > maxNameLength || len(c.LastName) > maxNameLength {
		return errors.NewValidationError("name", "name is too long")
	}

	if c.Email == "" {
		return errors.NewValidationError("email", "email is required")
	}
	if addr, err := mail.ParseAddress(c.Email); err != nil || addr.Address != c.Email {
		return errors.NewValidationError("email", "email is invalid")
	}

	if err := validatePhone(c.Phone); err != nil {
		return err
	}

	if c.Address == "" {
		return errors.NewValidationError("address", "address is required")
	}
	if len(c.Address) > maxAddressLength {
		return errors.NewValidationError("address", "address is too long")
	}

	return nil
}

func validatePhone(phone string) error {
	if phone == "" {
		return errors.NewValidationError("phone", "phone is required")
	}
	if len(phone) > maxPhoneLength {
		return errors.NewValidationError("phone", "phone is too long")
	}

	digits := 0
	for i, r := range phone {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '+' && i == 0:
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return errors.NewValidationError("phone", "phone contains invalid characters")
		}
	}
	if digits < minPhoneDigits {
		return errors.NewValidationError("phone", "phone is too short")
	}
	return nil
}

// ValidateQuantity checks an explicit add-to-cart quantity.
func ValidateQuantity(quantity int) error {
	if quantity < 1 {
		return errors.NewValidationError("quantity", "quantity must be at least 1")
	}
	return ValidateLineQuantity(quantity)
}

// ValidateLineQuantity checks the quantity a cart line would end up with.
func ValidateLineQuantity(quantity int) error {
	if quantity > maxCartQuantity {
		return errors.NewValidationError("quantity", "quantity is too large")
	}
	return nil
}

// ParseOrderID parses an order id taken from a path or the session.
func ParseOrderID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.NewValidationError("order_id", "invalid order id")
	}
	return id, nil
}

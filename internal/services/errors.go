package services

import "errors"

var (
	// ErrDiscountRepositoryMissing indicates the discount service was constructed without its repository.
	ErrDiscountRepositoryMissing = errors.New("services: discount repository is required")
	// ErrTaxRateRepositoryMissing indicates the tax service was constructed without its repository.
	ErrTaxRateRepositoryMissing = errors.New("services: tax rate repository is required")
	// ErrOrderRepositoryMissing indicates an order-backed service was constructed without its repository.
	ErrOrderRepositoryMissing = errors.New("services: order repository is required")
	// ErrDiscountServiceMissing indicates checkout was constructed without the discount service.
	ErrDiscountServiceMissing = errors.New("services: discount service is required")
	// ErrTaxServiceMissing indicates checkout was constructed without the tax service.
	ErrTaxServiceMissing = errors.New("services: tax service is required")

	// ErrOrderInvalidInput indicates the checkout command failed validation.
	ErrOrderInvalidInput = errors.New("services: order input is invalid")
	// ErrOrderTotalsInvalid indicates assembled totals violated a pricing bound.
	// Callers must abort the order rather than persist clamped values.
	ErrOrderTotalsInvalid = errors.New("services: order totals are invalid")
	// ErrOrderNotFound indicates the requested order does not exist.
	ErrOrderNotFound = errors.New("services: order not found")
	// ErrOrderForbidden indicates the requester does not own the order.
	ErrOrderForbidden = errors.New("services: order belongs to another user")
	// ErrOrderUnavailable indicates the order store could not be reached.
	ErrOrderUnavailable = errors.New("services: order store unavailable")
	// ErrDiscountUsageExhausted indicates the redemption lost the race for the last usage slot.
	ErrDiscountUsageExhausted = errors.New("services: discount usage limit reached")

	// ErrAdminInvalidInput indicates an admin command failed validation.
	ErrAdminInvalidInput = errors.New("services: admin input is invalid")
	// ErrDiscountNotFound indicates the requested discount does not exist.
	ErrDiscountNotFound = errors.New("services: discount not found")
	// ErrTaxRateNotFound indicates the requested tax rate does not exist.
	ErrTaxRateNotFound = errors.New("services: tax rate not found")
	// ErrCatalogUnavailable indicates the catalog store could not be reached.
	ErrCatalogUnavailable = errors.New("services: catalog store unavailable")
)

package store

import (
	"time"

	"github.com/go-playground/validator/v10"

	"ledger-sync-go/internal/models"
)

var validate = validator.New()

// validateStruct runs the shared validator and converts the first violation
// into a typed ValidationError.
func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		return &ValidationError{Field: errs[0].Field(), Reason: "failed rule " + errs[0].Tag()}
	}
	return &ValidationError{Field: "params", Reason: err.Error()}
}

// CreateAccountParams creates one logical account materialized as one row per
// currency, all sharing a group id generated before the write begins.
type CreateAccountParams struct {
	Name          string   `validate:"required,max=64"`
	Color         string   `validate:"omitempty,hexcolor"`
	AccountType   string   `validate:"required,oneof=checking savings cash credit"`
	CurrencyCodes []string `validate:"required,min=1,max=10,unique,dive,len=3,uppercase"`
}

func (p CreateAccountParams) Validate() error { return validateStruct(p) }

// AccountPatch is a field-level partial update. Nil fields are untouched.
// Balance and currency are never patchable: balance is server-computed and
// currency is fixed at creation.
type AccountPatch struct {
	Name        *string
	Color       *string
	AccountType *string

	// Delete records a soft delete attempted while the record was mid-sync.
	// It is replayed through the normal delete path after the lock releases.
	Delete bool
}

// IsZero reports whether the patch changes nothing.
func (p AccountPatch) IsZero() bool {
	return p.Name == nil && p.Color == nil && p.AccountType == nil && !p.Delete
}

// Merge overlays other on top of p; later intent wins per field.
func (p AccountPatch) Merge(other AccountPatch) AccountPatch {
	p.Delete = p.Delete || other.Delete
	if other.Name != nil {
		p.Name = other.Name
	}
	if other.Color != nil {
		p.Color = other.Color
	}
	if other.AccountType != nil {
		p.AccountType = other.AccountType
	}
	return p
}

// ApplyTo writes the patch onto a copy of the account and returns it.
func (p AccountPatch) ApplyTo(a models.Account) models.Account {
	if p.Name != nil {
		a.Name = *p.Name
	}
	if p.Color != nil {
		a.Color = *p.Color
	}
	if p.AccountType != nil {
		a.AccountType = *p.AccountType
	}
	return a
}

// UpdateAccountParams carries the caller's optimistic-concurrency expectation
// plus the attempted field changes.
type UpdateAccountParams struct {
	ExpectedVersion int64
	Patch           AccountPatch
}

// CreateTransactionParams creates a single transaction row. Amount is signed
// integer minor units: income positive, expense negative.
type CreateTransactionParams struct {
	AccountId       string `validate:"required,uuid4"`
	CategoryId      string `validate:"omitempty,uuid4"`
	TransactionType string `validate:"required,oneof=income expense"`
	Status          string `validate:"omitempty,oneof=posted inbox"`
	Amount          int64  `validate:"required"`
	Description     string `validate:"max=255"`
	Notes           string `validate:"max=1024"`
	OccurredOn      time.Time
}

func (p CreateTransactionParams) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.OccurredOn.IsZero() {
		return &ValidationError{Field: "OccurredOn", Reason: "date is required"}
	}
	return nil
}

// CreateTransferParams creates the two linked legs of a transfer atomically.
// Leg amounts are positive; the out leg is stored negated. Amounts may differ
// when the accounts hold different currencies.
type CreateTransferParams struct {
	FromAccountId string `validate:"required,uuid4"`
	ToAccountId   string `validate:"required,uuid4,nefield=FromAccountId"`
	FromAmount    int64  `validate:"required,gt=0"`
	ToAmount      int64  `validate:"required,gt=0"`
	Description   string `validate:"max=255"`
	OccurredOn    time.Time
}

func (p CreateTransferParams) Validate() error {
	if err := validateStruct(p); err != nil {
		return err
	}
	if p.OccurredOn.IsZero() {
		return &ValidationError{Field: "OccurredOn", Reason: "date is required"}
	}
	return nil
}

// TransactionPatch is a field-level partial update for a transaction.
// Empty-string CategoryId/ReconciliationId clear the link.
type TransactionPatch struct {
	AccountId        *string
	CategoryId       *string
	ReconciliationId *string
	TransactionType  *string
	Status           *string
	Amount           *int64
	Description      *string
	Notes            *string
	OccurredOn       *time.Time

	// Delete records a soft delete attempted while the record was mid-sync.
	Delete bool
}

// IsZero reports whether the patch changes nothing.
func (p TransactionPatch) IsZero() bool {
	return p.AccountId == nil && p.CategoryId == nil && p.ReconciliationId == nil &&
		p.TransactionType == nil && p.Status == nil && p.Amount == nil &&
		p.Description == nil && p.Notes == nil && p.OccurredOn == nil && !p.Delete
}

// Merge overlays other on top of p; later intent wins per field.
func (p TransactionPatch) Merge(other TransactionPatch) TransactionPatch {
	p.Delete = p.Delete || other.Delete
	if other.AccountId != nil {
		p.AccountId = other.AccountId
	}
	if other.CategoryId != nil {
		p.CategoryId = other.CategoryId
	}
	if other.ReconciliationId != nil {
		p.ReconciliationId = other.ReconciliationId
	}
	if other.TransactionType != nil {
		p.TransactionType = other.TransactionType
	}
	if other.Status != nil {
		p.Status = other.Status
	}
	if other.Amount != nil {
		p.Amount = other.Amount
	}
	if other.Description != nil {
		p.Description = other.Description
	}
	if other.Notes != nil {
		p.Notes = other.Notes
	}
	if other.OccurredOn != nil {
		p.OccurredOn = other.OccurredOn
	}
	return p
}

// ApplyTo writes the patch onto a copy of the transaction and returns it.
func (p TransactionPatch) ApplyTo(t models.Transaction) models.Transaction {
	if p.AccountId != nil {
		t.AccountId = *p.AccountId
	}
	if p.CategoryId != nil {
		t.CategoryId = *p.CategoryId
	}
	if p.ReconciliationId != nil {
		t.ReconciliationId = *p.ReconciliationId
	}
	if p.TransactionType != nil {
		t.TransactionType = *p.TransactionType
	}
	if p.Status != nil {
		t.Status = *p.Status
	}
	if p.Amount != nil {
		t.Amount = *p.Amount
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Notes != nil {
		t.Notes = *p.Notes
	}
	if p.OccurredOn != nil {
		t.OccurredOn = *p.OccurredOn
	}
	return t
}

// UpdateTransactionParams carries the caller's optimistic-concurrency
// expectation plus the attempted field changes.
type UpdateTransactionParams struct {
	ExpectedVersion int64
	Patch           TransactionPatch
}

// AccountFilter narrows account list queries. Zero values mean no filtering.
type AccountFilter struct {
	IncludeDeleted bool
	GroupId        string
	CurrencyCode   string
	AccountType    string
}

// TransactionFilter narrows transaction list queries. Zero values mean no
// filtering; Search matches description and notes case-insensitively.
type TransactionFilter struct {
	IncludeDeleted   bool
	AccountId        string
	CategoryId       string
	ReconciliationId string
	TransferId       string
	TransactionType  string
	Status           string
	From             time.Time
	To               time.Time
	MinAmount        *int64
	MaxAmount        *int64
	Search           string
	Limit            int
	Offset           int
}

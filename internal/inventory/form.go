package inventory

import (
	"bytes"
	"encoding/json"
	"errors"
	"strconv"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/cogniqyatendra-del/TeaWebsiteClean/internal/domain"
)

// ValidationMessage is shown for any rejected inventory form.
const ValidationMessage = "Please fill all fields correctly."

// Field is a numeric form input. It accepts a JSON number or string and
// keeps the raw text so validation sees exactly what was typed.
type Field string

// UnmarshalJSON implements json.Unmarshaler.
func (f *Field) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = Field(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = Field(n.String())
	return nil
}

// Form is the add-or-update inventory input.
type Form struct {
	Item    string `json:"item" validate:"required,max=100"`
	Stock   Field  `json:"stock" validate:"required,number"`
	Sold    Field  `json:"sold" validate:"required,number"`
	Reorder Field  `json:"reorder" validate:"required,number"`
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func formValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Record validates the form and converts it to a record. Every numeric field
// must be a non-negative integer and the item name must be non-blank.
func (f Form) Record() (domain.InventoryRecord, error) {
	f.Item = strings.TrimSpace(f.Item)
	f.Stock = Field(strings.TrimSpace(string(f.Stock)))
	f.Sold = Field(strings.TrimSpace(string(f.Sold)))
	f.Reorder = Field(strings.TrimSpace(string(f.Reorder)))

	if err := formValidator().Struct(f); err != nil {
		verr := &domain.ValidationError{Message: ValidationMessage}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) {
			for _, fe := range fieldErrs {
				verr.Fields = append(verr.Fields, strings.ToLower(fe.Field()))
			}
		}
		return domain.InventoryRecord{}, verr
	}

	rec := domain.InventoryRecord{Name: f.Item}
	var bad []string
	for _, p := range []struct {
		name string
		raw  Field
		dst  *int
	}{
		{"stock", f.Stock, &rec.Stock},
		{"sold", f.Sold, &rec.Sold},
		{"reorder", f.Reorder, &rec.Reorder},
	} {
		n, err := strconv.Atoi(string(p.raw))
		if err != nil || n < 0 {
			bad = append(bad, p.name)
			continue
		}
		*p.dst = n
	}
	if len(bad) > 0 {
		return domain.InventoryRecord{}, &domain.ValidationError{Message: ValidationMessage, Fields: bad}
	}
	return rec, nil
}

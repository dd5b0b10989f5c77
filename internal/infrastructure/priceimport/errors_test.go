package priceimport

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRowError(t *testing.T) {
	t.Run("Error with row", func(t *testing.T) {
		err := NewRowError(5, "goods.price", ErrCodeImportInvalidType, "expected decimal")
		assert.Equal(t, "row 5, column 'goods.price': expected decimal", err.Error())
	})

	t.Run("Document level error", func(t *testing.T) {
		err := NewRowError(0, "shop", ErrCodeImportRequiredField, "field 'shop' is required")
		assert.Equal(t, "shop: field 'shop' is required", err.Error())
	})

	t.Run("Error with value", func(t *testing.T) {
		err := NewRowError(3, "goods.quantity", ErrCodeImportInvalidType, "expected integer").WithValue("many")
		assert.Equal(t, "many", err.Value)
		assert.Equal(t, 3, err.Row)
	})
}

func TestErrorCollection(t *testing.T) {
	t.Run("Add errors within limit", func(t *testing.T) {
		ec := NewErrorCollection(10)

		ec.AddRequiredError(1, "goods.name")
		ec.AddRequiredError(2, "goods.name")

		assert.Equal(t, 2, ec.Count())
		assert.Equal(t, 2, ec.TotalCount())
		assert.True(t, ec.HasErrors())
		assert.False(t, ec.IsTruncated())
	})

	t.Run("Add errors exceeding limit", func(t *testing.T) {
		ec := NewErrorCollection(3)

		for i := 1; i <= 5; i++ {
			ec.AddRequiredError(i, "goods.id")
		}

		assert.Equal(t, 3, ec.Count())
		assert.Equal(t, 5, ec.TotalCount())
		assert.True(t, ec.IsTruncated())
		assert.Contains(t, ec.String(), "(showing first 3)")
	})

	t.Run("Default limit", func(t *testing.T) {
		ec := NewErrorCollection(0)
		for i := 0; i < DefaultMaxErrors+1; i++ {
			ec.AddRequiredError(i+1, "goods.id")
		}
		assert.Equal(t, DefaultMaxErrors, ec.Count())
		assert.True(t, ec.IsTruncated())
	})

	t.Run("Helper methods", func(t *testing.T) {
		ec := NewErrorCollection(10)

		ec.AddRequiredError(1, "goods.name")
		ec.AddTypeError(2, "goods.price", "decimal", "abc")
		ec.AddFormatError(0, "url", "absolute URL", "ftp:/x")
		ec.AddLengthError(4, "goods.model", 100, "x")
		ec.AddRangeError(5, "goods.quantity", "at least 0", "-1")
		ec.AddDuplicateError(6, "goods.id", "4216292")
		ec.AddReferenceError(7, "goods.category", "999", "category")

		errs := ec.Errors()
		assert.Equal(t, ErrCodeImportRequiredField, errs[0].Code)
		assert.Equal(t, ErrCodeImportInvalidType, errs[1].Code)
		assert.Equal(t, ErrCodeImportInvalidFormat, errs[2].Code)
		assert.Equal(t, ErrCodeImportInvalidLength, errs[3].Code)
		assert.Equal(t, ErrCodeImportInvalidRange, errs[4].Code)
		assert.Equal(t, ErrCodeImportDuplicateInFile, errs[5].Code)
		assert.Equal(t, ErrCodeImportReferenceNotFound, errs[6].Code)
		assert.Equal(t, "category '999' not found", errs[6].Message)
	})

	t.Run("Error summary", func(t *testing.T) {
		ec := NewErrorCollection(10)
		ec.AddRequiredError(1, "goods.name")
		ec.AddRequiredError(2, "goods.name")
		ec.AddDuplicateError(3, "goods.id", "1")

		summary := ec.ErrorSummary()
		assert.Equal(t, 2, summary[ErrCodeImportRequiredField])
		assert.Equal(t, 1, summary[ErrCodeImportDuplicateInFile])
	})

	t.Run("String representation", func(t *testing.T) {
		ec := NewErrorCollection(10)
		assert.Equal(t, "no errors", ec.String())

		ec.AddRequiredError(1, "goods.name")
		s := ec.String()
		assert.Contains(t, s, "1 error(s) found")
		assert.Contains(t, s, "row 1, column 'goods.name'")
	})
}

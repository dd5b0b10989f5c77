package priceimport

import (
	"bytes"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Document is a shop price list. JSON documents decode as well, being a
// subset of YAML.
type Document struct {
	Shop       string     `yaml:"shop" validate:"required,max=100"`
	URL        string     `yaml:"url" validate:"omitempty,url,max=500"`
	Categories []Category `yaml:"categories"`
	Goods      []Good     `yaml:"goods"`
}

// Category is a document-local category. ID is only meaningful inside the
// document, where goods reference it.
type Category struct {
	ID   int64  `yaml:"id"`
	Name string `yaml:"name" validate:"required,max=100"`
}

// Good is one offer of the shop
type Good struct {
	ID         int64             `yaml:"id"`
	Category   int64             `yaml:"category"`
	Name       string            `yaml:"name" validate:"required,max=100"`
	Model      string            `yaml:"model" validate:"max=100"`
	Price      decimal.Decimal   `yaml:"price" validate:"gt=0"`
	PriceRRC   decimal.Decimal   `yaml:"price_rrc" validate:"gte=0"`
	Quantity   int               `yaml:"quantity" validate:"gte=0"`
	Parameters map[string]string `yaml:"parameters" validate:"dive,keys,required,max=100,endkeys,max=100"`
}

// CategoryNames maps document category ids to names
func (d *Document) CategoryNames() map[int64]string {
	names := make(map[int64]string, len(d.Categories))
	for _, c := range d.Categories {
		names[c.ID] = c.Name
	}
	return names
}

type rawDocument struct {
	Shop       any           `yaml:"shop"`
	URL        any           `yaml:"url"`
	Categories []rawCategory `yaml:"categories"`
	Goods      []rawGood     `yaml:"goods"`
}

type rawCategory struct {
	ID   any `yaml:"id"`
	Name any `yaml:"name"`
}

type rawGood struct {
	ID         any            `yaml:"id"`
	Category   any            `yaml:"category"`
	Name       any            `yaml:"name"`
	Model      any            `yaml:"model"`
	Price      any            `yaml:"price"`
	PriceRRC   any            `yaml:"price_rrc"`
	Quantity   any            `yaml:"quantity"`
	Parameters map[string]any `yaml:"parameters"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	// Decimals validate as floats; the exact value is kept in the document.
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// Parse decodes and validates a price document. Row problems are collected
// rather than returned; the error result is reserved for documents that
// cannot be read at all.
func Parse(data []byte, maxErrors int) (*Document, *ErrorCollection, error) {
	errs := NewErrorCollection(maxErrors)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, errs, ErrEmptyDocument
	}

	var raw rawDocument
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, errs, fmt.Errorf("decode price document: %w", err)
	}

	parsed := newParsedFields()
	doc := &Document{
		Shop: scalarString(raw.Shop),
		URL:  scalarString(raw.URL),
	}
	for i, rc := range raw.Categories {
		row := i + 1
		c := Category{Name: scalarString(rc.Name)}
		c.ID, parsed.categoryID[i] = requireID(errs, row, "categories.id", rc.ID)
		doc.Categories = append(doc.Categories, c)
	}
	for i, rg := range raw.Goods {
		doc.Goods = append(doc.Goods, convertGood(errs, i, rg, parsed))
	}

	validateDocument(doc, parsed, errs)
	return doc, errs, nil
}

// parsedFields records, by section index, which scalars converted cleanly.
// Validation of an entry skips checks on fields that already failed.
type parsedFields struct {
	categoryID  map[int]bool
	goodID      map[int]bool
	goodRef     map[int]bool
	goodPricing map[int]bool
}

func newParsedFields() parsedFields {
	return parsedFields{
		categoryID:  make(map[int]bool),
		goodID:      make(map[int]bool),
		goodRef:     make(map[int]bool),
		goodPricing: make(map[int]bool),
	}
}

func convertGood(errs *ErrorCollection, i int, rg rawGood, parsed parsedFields) Good {
	row := i + 1
	g := Good{
		Name:  scalarString(rg.Name),
		Model: scalarString(rg.Model),
	}
	g.ID, parsed.goodID[i] = requireID(errs, row, "goods.id", rg.ID)
	g.Category, parsed.goodRef[i] = requireInt(errs, row, "goods.category", rg.Category)
	if q, ok := requireInt(errs, row, "goods.quantity", rg.Quantity); ok {
		if q > math.MaxInt32 {
			errs.AddRangeError(row, "goods.quantity", "at most 2147483647", strconv.FormatInt(q, 10))
		} else {
			g.Quantity = int(q)
		}
	}
	if rg.Price == nil {
		errs.AddRequiredError(row, "goods.price")
	} else if p, ok := toDecimal(rg.Price); ok {
		g.Price, parsed.goodPricing[i] = p, true
	} else {
		errs.AddTypeError(row, "goods.price", "decimal", scalarString(rg.Price))
	}
	if rg.PriceRRC != nil {
		if p, ok := toDecimal(rg.PriceRRC); ok {
			g.PriceRRC = p
		} else {
			errs.AddTypeError(row, "goods.price_rrc", "decimal", scalarString(rg.PriceRRC))
		}
	}
	if len(rg.Parameters) > 0 {
		g.Parameters = make(map[string]string, len(rg.Parameters))
		for name, value := range rg.Parameters {
			g.Parameters[strings.TrimSpace(name)] = scalarString(value)
		}
	}
	return g
}

func validateDocument(doc *Document, parsed parsedFields, errs *ErrorCollection) {
	// Sections carry no dive tag; entries are validated one by one for row numbers.
	if err := validate.Struct(doc); err != nil {
		addValidationErrors(errs, 0, "", err)
	}

	categories := make(map[int64]bool, len(doc.Categories))
	for i, c := range doc.Categories {
		row := i + 1
		if err := validate.Struct(c); err != nil {
			addValidationErrors(errs, row, "categories", err)
		}
		if !parsed.categoryID[i] {
			continue
		}
		if categories[c.ID] {
			errs.AddDuplicateError(row, "categories.id", strconv.FormatInt(c.ID, 10))
		}
		categories[c.ID] = true
	}

	goods := make(map[int64]bool, len(doc.Goods))
	for i, g := range doc.Goods {
		row := i + 1
		var err error
		if !parsed.goodPricing[i] {
			err = validate.StructExcept(g, "Price")
		} else {
			err = validate.Struct(g)
		}
		if err != nil {
			addValidationErrors(errs, row, "goods", err)
		}
		if parsed.goodID[i] {
			if goods[g.ID] {
				errs.AddDuplicateError(row, "goods.id", strconv.FormatInt(g.ID, 10))
			}
			goods[g.ID] = true
		}
		if parsed.goodRef[i] && !categories[g.Category] {
			errs.AddReferenceError(row, "goods.category", strconv.FormatInt(g.Category, 10), "category")
		}
	}
}

func addValidationErrors(errs *ErrorCollection, row int, section string, err error) {
	fieldErrs, ok := err.(validator.ValidationErrors)
	if !ok {
		errs.Add(NewRowError(row, section, ErrCodeImportInvalidFile, err.Error()))
		return
	}
	for _, fe := range fieldErrs {
		column := fe.Field()
		if section != "" {
			column = section + "." + column
		}
		value := fmt.Sprint(fe.Value())
		switch fe.Tag() {
		case "required":
			errs.AddRequiredError(row, column)
		case "max":
			n, _ := strconv.Atoi(fe.Param())
			errs.AddLengthError(row, column, n, value)
		case "gt":
			errs.AddRangeError(row, column, "greater than "+fe.Param(), value)
		case "gte":
			errs.AddRangeError(row, column, "at least "+fe.Param(), value)
		case "url":
			errs.AddFormatError(row, column, "absolute URL", value)
		default:
			errs.Add(NewRowError(row, column, ErrCodeImportInvalidFormat,
				fmt.Sprintf("failed '%s' validation", fe.Tag())).WithValue(value))
		}
	}
}

// requireID is requireInt for identifiers, which must be positive. A
// non-positive id still counts as parsed so duplicates of it are reported.
func requireID(errs *ErrorCollection, row int, column string, v any) (int64, bool) {
	n, ok := requireInt(errs, row, column, v)
	if ok && n <= 0 {
		errs.AddRangeError(row, column, "greater than 0", strconv.FormatInt(n, 10))
	}
	return n, ok
}

// requireInt converts a scalar to int64, recording a required or type error
func requireInt(errs *ErrorCollection, row int, column string, v any) (int64, bool) {
	if v == nil {
		errs.AddRequiredError(row, column)
		return 0, false
	}
	n, ok := toInt64(v)
	if !ok {
		errs.AddTypeError(row, column, "integer", scalarString(v))
		return 0, false
	}
	return n, true
}

func toInt64(v any) (int64, bool) {
	switch n := v.(type) {
	case int:
		return int64(n), true
	case int64:
		return n, true
	case uint64:
		if n > math.MaxInt64 {
			return 0, false
		}
		return int64(n), true
	case float64:
		if n != math.Trunc(n) || math.Abs(n) > 1<<53 {
			return 0, false
		}
		return int64(n), true
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		return i, err == nil
	}
	return 0, false
}

func toDecimal(v any) (decimal.Decimal, bool) {
	switch n := v.(type) {
	case int:
		return decimal.NewFromInt(int64(n)), true
	case int64:
		return decimal.NewFromInt(n), true
	case float64:
		return decimal.NewFromFloat(n), true
	case string:
		d, err := decimal.NewFromString(strings.TrimSpace(n))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func scalarString(v any) string {
	switch s := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(s)
	case map[string]any, []any:
		return ""
	default:
		return fmt.Sprint(s)
	}
}

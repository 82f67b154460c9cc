package validation

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"
	"github.com/santhosh-tekuri/jsonschema/v6/kind"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Request body schemas
const (
	SchemaRegister = "register"
	SchemaLogin    = "login"
)

// DefaultCacheSize bounds the compiled schema cache.
const DefaultCacheSize = 16

// ErrUnknownSchema is returned for a schema name with no embedded document.
var ErrUnknownSchema = errors.New("unknown schema")

// Validator checks request bodies against embedded JSON schemas and decoded
// DTOs against their struct tags. Failures are reported as "field: message".
type Validator struct {
	schemaCache *lru.Cache[string, *jsonschema.Schema]
	validate    *validator.Validate
	printer     *message.Printer
}

// New creates a validator with an LRU cache of compiled schemas.
func New(cacheSize int) (*Validator, error) {
	cache, err := lru.New[string, *jsonschema.Schema](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("create schema cache: %w", err)
	}

	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(jsonFieldName)

	return &Validator{
		schemaCache: cache,
		validate:    validate,
		printer:     message.NewPrinter(language.English),
	}, nil
}

// Body validates raw JSON against the named schema.
// It returns the field messages, or an error when the schema itself is unusable.
func (v *Validator) Body(name string, raw []byte) ([]string, error) {
	schema, err := v.schema(name)
	if err != nil {
		return nil, err
	}

	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return []string{"body: must be a valid JSON document"}, nil
	}

	err = schema.Validate(doc)
	if err == nil {
		return nil, nil
	}
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return nil, fmt.Errorf("validate %s body: %w", name, err)
	}

	var msgs []string
	v.collect(ve, &msgs)
	sort.Strings(msgs)
	return msgs, nil
}

// Struct validates s by its `validate` tags.
func (v *Validator) Struct(s any) []string {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []string{err.Error()}
	}

	msgs := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		msgs = append(msgs, fe.Field()+": "+fieldMessage(fe))
	}
	return msgs
}

func (v *Validator) schema(name string) (*jsonschema.Schema, error) {
	if cached, ok := v.schemaCache.Get(name); ok {
		return cached, nil
	}

	raw, err := schemaFS.ReadFile("schemas/" + name + ".json")
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSchema, name)
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse schema %s: %w", name, err)
	}

	compiler := jsonschema.NewCompiler()
	url := name + ".json"
	if err := compiler.AddResource(url, doc); err != nil {
		return nil, fmt.Errorf("add schema resource %s: %w", name, err)
	}
	schema, err := compiler.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("compile schema %s: %w", name, err)
	}

	v.schemaCache.Add(name, schema)
	return schema, nil
}

// collect flattens the leaf causes of a schema violation.
func (v *Validator) collect(ve *jsonschema.ValidationError, out *[]string) {
	if len(ve.Causes) > 0 {
		for _, cause := range ve.Causes {
			v.collect(cause, out)
		}
		return
	}

	field := strings.Join(ve.InstanceLocation, ".")
	switch k := ve.ErrorKind.(type) {
	case *kind.Required:
		for _, missing := range k.Missing {
			*out = append(*out, joinField(field, missing)+": is required")
		}
		return
	case *kind.AdditionalProperties:
		for _, prop := range k.Properties {
			*out = append(*out, joinField(field, prop)+": is not allowed")
		}
		return
	}

	if field == "" {
		field = "body"
	}
	*out = append(*out, field+": "+ve.ErrorKind.LocalizedString(v.printer))
}

func joinField(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "." + name
}

func jsonFieldName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	switch name {
	case "-":
		return ""
	case "":
		return f.Name
	}
	return name
}

func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", fe.Param())
	case "oneof":
		return "must be one of " + fe.Param()
	case "e164":
		return "must be a phone number in E.164 format"
	}
	return fmt.Sprintf("failed the %q rule", fe.Tag())
}

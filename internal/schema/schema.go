// Package schema holds validation-schema bundles for model input.
//
// A Bundle maps each model to validator tags for its create and update
// payloads. Bundles are either handed to the API directly or looked up
// from the process-wide default registry, which generated model packages
// populate at init time.
package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/deppfellow/go-crud-api/internal/validation"
	"github.com/go-playground/validator/v10"
)

// ErrNoDefaultBundle is returned by Default when nothing has been registered.
var ErrNoDefaultBundle = errors.New("no default schema bundle registered")

// Rules maps a field name to a validator tag string, e.g. "required,email".
type Rules map[string]string

// ModelSchemas holds the input rules of one model.
//
// Create applies to create, createMany and the create half of upsert.
// Update applies to update, updateMany and the update half of upsert.
type ModelSchemas struct {
	Create Rules
	Update Rules
}

// Bundle is a set of per-model validation schemas.
type Bundle struct {
	// Models is keyed by lower-camel model name, same as crud.ModelMeta.
	Models map[string]ModelSchemas

	once     sync.Once
	validate *validator.Validate
}

// NewBundle builds a Bundle from per-model schemas.
func NewBundle(models map[string]ModelSchemas) *Bundle {
	return &Bundle{Models: models}
}

func (b *Bundle) validator() *validator.Validate {
	b.once.Do(func() {
		b.validate = validation.New()
	})
	return b.validate
}

// Validate checks the payload of a mutation against the model's rules.
//
// op is the operation verb ("create", "updateMany", ...). Read operations
// and models without rules always pass. Failures are returned as
// validation.CustomValidationErrors.
func (b *Bundle) Validate(model, op string, args map[string]any) error {
	if b == nil {
		return nil
	}
	ms, ok := b.Models[model]
	if !ok {
		return nil
	}

	switch op {
	case "create":
		return b.check(ms.Create, args["data"])
	case "createMany":
		return b.checkMany(ms.Create, args["data"])
	case "update", "updateMany":
		return b.check(partial(ms.Update), args["data"])
	case "upsert":
		if err := b.check(ms.Create, args["create"]); err != nil {
			return err
		}
		return b.check(partial(ms.Update), args["update"])
	}
	return nil
}

func (b *Bundle) check(rules Rules, payload any) error {
	if len(rules) == 0 {
		return nil
	}
	data, ok := payload.(map[string]any)
	if !ok {
		return validation.CustomValidationErrors{{Field: "data", Message: "must be an object"}}
	}
	return validation.ValidateMap(b.validator(), data, rules)
}

func (b *Bundle) checkMany(rules Rules, payload any) error {
	items, ok := payload.([]any)
	if !ok {
		// createMany also accepts a single object
		return b.check(rules, payload)
	}

	var out validation.CustomValidationErrors
	for i, item := range items {
		err := b.check(rules, item)
		if err == nil {
			continue
		}
		var ces validation.CustomValidationErrors
		if !errors.As(err, &ces) {
			return err
		}
		for _, ce := range ces {
			out = append(out, validation.CustomValidationError{
				Field:   fmt.Sprintf("data[%d].%s", i, ce.Field),
				Message: ce.Message,
			})
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// partial drops "required" from every rule: update payloads only carry
// the fields being changed.
func partial(rules Rules) Rules {
	if len(rules) == 0 {
		return rules
	}
	out := make(Rules, len(rules))
	for field, tag := range rules {
		out[field] = stripRequired(tag)
	}
	return out
}

var (
	defaultMu     sync.RWMutex
	defaultBundle *Bundle
)

// RegisterDefault installs b as the default bundle. Later calls replace it.
func RegisterDefault(b *Bundle) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	defaultBundle = b
}

// Default returns the registered default bundle.
func Default() (*Bundle, error) {
	defaultMu.RLock()
	defer defaultMu.RUnlock()
	if defaultBundle == nil {
		return nil, ErrNoDefaultBundle
	}
	return defaultBundle, nil
}

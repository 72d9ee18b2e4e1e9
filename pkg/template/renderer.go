package template

import (
	"fmt"
	"strings"
	"sync"

	"github.com/osteele/liquid"

	"github.com/onurcolak/messaging-dashboard/internal/domain"
)

// Renderer renders Liquid message templates against recipient variables.
// Parsed templates are cached by source text.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template
}

func NewRenderer() *Renderer {
	engine := liquid.NewEngine()

	engine.RegisterFilter("first_name", func(value string) string {
		if fields := strings.Fields(value); len(fields) > 0 {
			return fields[0]
		}
		return value
	})

	return &Renderer{engine: engine}
}

// Validate reports template syntax errors.
func (r *Renderer) Validate(source string) error {
	_, err := r.parse(source)
	return err
}

// Render renders source for the recipient. Every variable is exposed by its
// column name, plus "name" and "phone".
func (r *Renderer) Render(source string, recipient domain.Recipient) (string, error) {
	tpl, err := r.parse(source)
	if err != nil {
		return "", err
	}

	bindings := make(map[string]any, len(recipient.Variables)+2)
	for k, v := range recipient.Variables {
		bindings[k] = v
	}
	bindings["name"] = recipient.Name
	bindings["phone"] = recipient.PhoneNumber

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}

	return strings.TrimSpace(out), nil
}

func (r *Renderer) parse(source string) (*liquid.Template, error) {
	if cached, ok := r.cache.Load(source); ok {
		return cached.(*liquid.Template), nil
	}

	tpl, err := r.engine.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid template: %v", domain.ErrInvalidInput, err)
	}

	r.cache.Store(source, tpl)
	return tpl, nil
}

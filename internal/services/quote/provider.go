package quote

import (
	"context"

	"github.com/mcoot/typerace-go/internal/model"
)

// Provider returns passage text for a requested length category. Fetches
// may be slow or fail; callers treat the provider as an opaque async
// collaborator and must not hold room locks while calling it.
type Provider interface {
	Fetch(ctx context.Context, length model.QuoteLength) (string, error)
}

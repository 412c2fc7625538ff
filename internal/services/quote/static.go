package quote

import (
	"context"

	"github.com/mcoot/typerace-go/internal/dependencies/random"
	"github.com/mcoot/typerace-go/internal/model"
)

// Built-in passages used when the quote API is unreachable, so a room is
// never left stalled waiting for text.
var builtinPassages = map[model.QuoteLength][]string{
	model.QuoteLengthShort: {
		"The journey of a thousand miles begins with a single step.",
		"Well done is better than well said.",
		"What we think, we become.",
	},
	model.QuoteLengthMedium: {
		"It is not the mountain we conquer, but ourselves. The struggle itself toward the heights is enough to fill a heart with purpose and resolve.",
		"Success is not final, failure is not fatal: it is the courage to continue that counts. Every setback carries the seed of a comeback.",
	},
	model.QuoteLengthLong: {
		"Twenty years from now you will be more disappointed by the things that you did not do than by the ones you did do. So throw off the bowlines. Sail away from the safe harbor. Catch the trade winds in your sails. Explore. Dream. Discover. The world belongs to those who set out.",
		"The only limit to our realization of tomorrow will be our doubts of today. Let us move forward with strong and active faith, for the future belongs to those who believe in the beauty of their dreams and are willing to work patiently toward them, one deliberate day at a time.",
	},
}

// StaticProvider serves passages from a built-in set. It never fails and
// is used both as the fetch-failure fallback and in tests.
type StaticProvider struct {
	random random.Random
}

// NewStaticProvider creates a provider over the built-in passage set
func NewStaticProvider(rnd random.Random) *StaticProvider {
	return &StaticProvider{random: rnd}
}

var _ Provider = (*StaticProvider)(nil)

// Fetch picks a passage uniformly from the category's built-in set
func (p *StaticProvider) Fetch(_ context.Context, length model.QuoteLength) (string, error) {
	passages, ok := builtinPassages[length]
	if !ok {
		passages = builtinPassages[model.QuoteLengthMedium]
	}
	return passages[p.random.Intn(len(passages))], nil
}

package leads

import (
	"context"
	"errors"
	"log/slog"
)

var ErrInvalidArgument = errors.New("leads: invalid argument")

// Repository abstracts lead lookup for the resolver.
type Repository interface {
	// FindByNumber returns leads whose primary or alternate number equals
	// the E.164 input, most recently created first. Implementations may cap
	// the result; the resolver only needs the first two rows.
	FindByNumber(ctx context.Context, number string) ([]Lead, error)
}

// Resolution is the outcome of a lead match.
type Resolution struct {
	Lead  Lead
	Found bool

	// Ambiguous is set when more than one lead shares the number. The
	// most recently created lead wins; the ambiguity is logged for audit.
	Ambiguous bool
}

// Resolver performs best-effort matching of a phone number to a lead.
type Resolver struct {
	repo Repository
	log  *slog.Logger
}

func NewResolver(repo Repository, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{repo: repo, log: log}
}

// Resolve matches number (E.164) against lead primary/alternate numbers.
// A miss is not an error; the session simply stays unowned.
func (r *Resolver) Resolve(ctx context.Context, number string) (Resolution, error) {
	if number == "" {
		return Resolution{}, ErrInvalidArgument
	}
	if r.repo == nil {
		return Resolution{}, errors.New("leads: repository not configured")
	}

	matches, err := r.repo.FindByNumber(ctx, number)
	if err != nil {
		return Resolution{}, err
	}
	if len(matches) == 0 {
		return Resolution{}, nil
	}

	res := Resolution{Lead: matches[0], Found: true, Ambiguous: len(matches) > 1}
	if res.Ambiguous {
		r.log.Warn("ambiguous lead match, most recent wins",
			"number", number,
			"lead_id", res.Lead.LeadID,
			"candidates", len(matches),
		)
	}
	return res, nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/vendorlane/api/internal/repositories"
)

// ErrCounterInvalidInput indicates the caller supplied invalid counter parameters.
var ErrCounterInvalidInput = errors.New("counter: invalid input")

// CounterServiceDeps bundles collaborators required to construct a counter service instance.
type CounterServiceDeps struct {
	Repository repositories.CounterRepository
	Clock      func() time.Time
}

type counterService struct {
	repo  repositories.CounterRepository
	clock func() time.Time
}

// NewCounterService constructs a service that manages counter sequences on top of the repository.
func NewCounterService(deps CounterServiceDeps) (CounterService, error) {
	if deps.Repository == nil {
		return nil, errors.New("counter service: repository is required")
	}

	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	return &counterService{
		repo: deps.Repository,
		clock: func() time.Time {
			return clock().UTC()
		},
	}, nil
}

func (s *counterService) Next(ctx context.Context, scope, name string, opts CounterGenerationOptions) (CounterValue, error) {
	scope = strings.TrimSpace(scope)
	name = strings.TrimSpace(name)
	if scope == "" {
		return CounterValue{}, fmt.Errorf("%w: scope is required", ErrCounterInvalidInput)
	}
	if name == "" {
		return CounterValue{}, fmt.Errorf("%w: name is required", ErrCounterInvalidInput)
	}

	step := opts.Step
	if step <= 0 {
		step = 1
	}

	value, err := s.repo.Next(ctx, scope+":"+name, step)
	if err != nil {
		var counterErr *repositories.CounterError
		if errors.As(err, &counterErr) && counterErr.Code == repositories.CounterErrorInvalidInput {
			return CounterValue{}, fmt.Errorf("%w: %s", ErrCounterInvalidInput, counterErr.Message)
		}
		return CounterValue{}, err
	}

	now := s.clock()
	formatted := s.formatValue(now, value, opts)
	return CounterValue{Value: value, Formatted: formatted}, nil
}

// Document numbers share a day-scoped sequence format: the counter row is
// keyed by scope and calendar day, so each day restarts at 0001 and two
// concurrent callers can never mint the same number.
func (s *counterService) NextCartNumber(ctx context.Context) (string, error) {
	return s.nextDayScopedNumber(ctx, "carts", "CRT")
}

func (s *counterService) NextQuoteNumber(ctx context.Context) (string, error) {
	return s.nextDayScopedNumber(ctx, "quotes", "QUO")
}

func (s *counterService) NextInvoiceNumber(ctx context.Context) (string, error) {
	return s.nextDayScopedNumber(ctx, "invoices", "INV")
}

func (s *counterService) NextOrderNumber(ctx context.Context) (string, error) {
	return s.nextDayScopedNumber(ctx, "orders", "ORD")
}

func (s *counterService) nextDayScopedNumber(ctx context.Context, scope, prefix string) (string, error) {
	day := s.clock().Format("20060102")
	opts := CounterGenerationOptions{
		Step:      1,
		Prefix:    prefix + "-" + day + "-",
		PadLength: 4,
	}
	result, err := s.Next(ctx, scope, day, opts)
	if err != nil {
		return "", err
	}
	return result.Formatted, nil
}

func (s *counterService) formatValue(now time.Time, value int64, opts CounterGenerationOptions) string {
	if opts.Formatter != nil {
		return opts.Formatter(now, value)
	}

	formatted := strconv.FormatInt(value, 10)
	if opts.PadLength > 0 {
		formatted = fmt.Sprintf("%0*d", opts.PadLength, value)
	}
	if opts.Prefix != "" {
		formatted = opts.Prefix + formatted
	}
	if opts.Suffix != "" {
		formatted += opts.Suffix
	}
	return formatted
}

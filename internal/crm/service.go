package crm

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"voicedash/internal/target"
)

var (
	ErrNotFound     = errors.New("crm: customer not found")
	ErrInvalidPhone = errors.New("crm: invalid phone number")
)

// Repository is the persistence contract for the customer directory.
type Repository interface {
	Upsert(ctx context.Context, c Customer) error
	Get(ctx context.Context, id string) (Customer, error)
	List(ctx context.Context) ([]Customer, error)
	Delete(ctx context.Context, id string) error
}

type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

// Create saves a new customer. The phone number must pass the same validation
// used for dispatch targets so saved contacts are always dialable.
func (s *Service) Create(ctx context.Context, c Customer) (Customer, error) {
	c.Phone = target.NormalizePhoneNumber(c.Phone)
	if !target.ValidPhoneNumber(c.Phone) {
		return Customer{}, ErrInvalidPhone
	}

	c.ID = uuid.NewString()
	c.CreatedAt = s.clock().UTC()
	c.Name = target.StripNonPrintable(c.Name)
	c.Email = target.StripNonPrintable(c.Email)
	c.Company = target.StripNonPrintable(c.Company)

	if err := s.repo.Upsert(ctx, c); err != nil {
		return Customer{}, err
	}
	return c, nil
}

func (s *Service) Get(ctx context.Context, id string) (Customer, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]Customer, error) {
	return s.repo.List(ctx)
}

func (s *Service) Delete(ctx context.Context, id string) error {
	return s.repo.Delete(ctx, id)
}

// CallTargets resolves customer ids into dispatch targets, preserving the
// requested order. Unknown ids fail the whole resolution; dispatching to a
// partially resolved list would silently drop contacts. Customers whose stored
// number no longer validates are skipped and reported instead.
func (s *Service) CallTargets(ctx context.Context, ids []string) ([]target.CallTarget, []string, error) {
	out := make([]target.CallTarget, 0, len(ids))
	var skipped []string
	for _, id := range ids {
		c, err := s.repo.Get(ctx, id)
		if err != nil {
			return nil, nil, err
		}
		if !target.ValidPhoneNumber(c.Phone) {
			skipped = append(skipped, c.ID)
			continue
		}
		out = append(out, target.CallTarget{Number: c.Phone, Name: c.Name, Email: c.Email})
	}
	return out, skipped, nil
}

package queries

import (
	"context"
	"strings"

	"github.com/dejobratic/storefront/internal/orders/domain"
	"github.com/dejobratic/storefront/internal/orders/ports"
)

const maxPageSize = 100

// ListOrdersQuery lists orders, optionally for one user and one status.
type ListOrdersQuery struct {
	Status   string
	UserID   string
	Page     int
	PageSize int
}

type ListOrdersQueryHandler struct {
	repo ports.OrderRepository
}

func NewListOrdersQueryHandler(repo ports.OrderRepository) *ListOrdersQueryHandler {
	return &ListOrdersQueryHandler{repo: repo}
}

func (h *ListOrdersQueryHandler) Handle(ctx context.Context, query ListOrdersQuery) ([]domain.Order, error) {
	filter, err := query.Filter()
	if err != nil {
		return nil, err
	}
	return h.repo.List(ctx, filter)
}

// Filter validates the query and converts it into a repository filter.
func (q ListOrdersQuery) Filter() (ports.ListFilter, error) {
	filter := ports.ListFilter{
		UserID:   strings.TrimSpace(q.UserID),
		Page:     q.Page,
		PageSize: q.PageSize,
	}

	if q.Page < 0 {
		return ports.ListFilter{}, domain.NewValidationError("page", "must not be negative")
	}
	if q.PageSize < 0 || q.PageSize > maxPageSize {
		return ports.ListFilter{}, domain.NewValidationError("page_size", "must be between 1 and 100")
	}

	if strings.TrimSpace(q.Status) != "" {
		status, err := domain.ParseOrderStatus(q.Status)
		if err != nil {
			return ports.ListFilter{}, err
		}
		filter.Status = &status
	}

	return filter, nil
}

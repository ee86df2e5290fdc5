package financial

import (
	"context"
	"net/url"
	"time"

	"github.com/clinic/therapy/internal/platform/apiclient"
)

// Repository lists standalone financial records.
type Repository interface {
	ListByDate(ctx context.Context, day time.Time) ([]*FinancialRecord, error)
}

type repoHTTP struct {
	client *apiclient.Client
}

func NewRepoHTTP(client *apiclient.Client) Repository {
	return &repoHTTP{client: client}
}

func (r *repoHTTP) ListByDate(ctx context.Context, day time.Time) ([]*FinancialRecord, error) {
	q := url.Values{}
	q.Set("date", day.Format(DateLayout))

	records := []*FinancialRecord{}
	if err := r.client.Get(ctx, "/financial-records", q, &records); err != nil {
		return nil, err
	}
	return records, nil
}

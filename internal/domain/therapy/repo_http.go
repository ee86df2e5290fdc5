package therapy

import (
	"context"
	"net/url"
	"strconv"

	"github.com/clinic/therapy/internal/platform/apiclient"
	"github.com/clinic/therapy/pkg/pagination"
)

type packageRepoHTTP struct {
	client *apiclient.Client
}

func NewPackageRepoHTTP(client *apiclient.Client) PackageRepository {
	return &packageRepoHTTP{client: client}
}

func packagePath(id string) string {
	return "/packages/" + url.PathEscape(id)
}

func (r *packageRepoHTTP) Create(ctx context.Context, req CreatePackageRequest) (*TherapyPackage, error) {
	var p TherapyPackage
	if err := r.client.Post(ctx, "/packages", req, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepoHTTP) List(ctx context.Context, patientID string, f ListFilters) (*PackageList, error) {
	q := url.Values{}
	q.Set("patientId", patientID)
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(min(f.Page, pagination.MaxPage)))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(min(f.Limit, pagination.MaxLimit)))
	}
	if f.Status != "" {
		q.Set("status", string(f.Status))
	}
	if f.Type != "" {
		q.Set("type", string(f.Type))
	}

	var list PackageList
	if err := r.client.Get(ctx, "/packages", q, &list); err != nil {
		return nil, err
	}
	if list.Data == nil {
		list.Data = []*TherapyPackage{}
	}
	for _, p := range list.Data {
		Reconcile(p)
	}
	return &list, nil
}

func (r *packageRepoHTTP) Update(ctx context.Context, packageID string, patch PackageUpdate) (*TherapyPackage, error) {
	var p TherapyPackage
	if err := r.client.Patch(ctx, packagePath(packageID), patch, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepoHTTP) Delete(ctx context.Context, packageID string) error {
	return r.client.Delete(ctx, packagePath(packageID))
}

func (r *packageRepoHTTP) EditSession(ctx context.Context, packageID, sessionID string, payload SessionUsePayload) (*Session, error) {
	var s Session
	path := packagePath(packageID) + "/sessions/" + url.PathEscape(sessionID)
	if err := r.client.Put(ctx, path, payload, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *packageRepoHTTP) UseSession(ctx context.Context, packageID string, payload SessionUsePayload) (*TherapyPackage, error) {
	var p TherapyPackage
	if err := r.client.Patch(ctx, packagePath(packageID)+"/use-session", payload, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *packageRepoHTTP) RegisterPayment(ctx context.Context, packageID string, in PaymentInput) (*Payment, error) {
	var pay Payment
	if err := r.client.Post(ctx, packagePath(packageID)+"/payments", in, &pay); err != nil {
		return nil, err
	}
	return &pay, nil
}

func (r *packageRepoHTTP) ListSessions(ctx context.Context, packageID string) ([]*Session, error) {
	sessions := []*Session{}
	if err := r.client.Get(ctx, packagePath(packageID)+"/sessions", nil, &sessions); err != nil {
		return nil, err
	}
	return sessions, nil
}

func (r *packageRepoHTTP) ListPayments(ctx context.Context, packageID string) ([]*Payment, error) {
	payments := []*Payment{}
	if err := r.client.Get(ctx, packagePath(packageID)+"/payments", nil, &payments); err != nil {
		return nil, err
	}
	return payments, nil
}

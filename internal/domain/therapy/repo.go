package therapy

import "context"

// ListFilters narrows a package listing. Zero values mean "no filter".
type ListFilters struct {
	Status PackageStatus
	Type   SessionType
	Page   int
	Limit  int
}

// PackageList is one page of packages as returned by the backend.
type PackageList struct {
	Data  []*TherapyPackage `json:"data"`
	Total int               `json:"total"`
	Page  int               `json:"page"`
	Limit int               `json:"limit"`
}

// PackageRepository is the backend boundary for therapy packages.
type PackageRepository interface {
	Create(ctx context.Context, req CreatePackageRequest) (*TherapyPackage, error)
	List(ctx context.Context, patientID string, f ListFilters) (*PackageList, error)
	Update(ctx context.Context, packageID string, patch PackageUpdate) (*TherapyPackage, error)
	Delete(ctx context.Context, packageID string) error
	EditSession(ctx context.Context, packageID, sessionID string, payload SessionUsePayload) (*Session, error)
	UseSession(ctx context.Context, packageID string, payload SessionUsePayload) (*TherapyPackage, error)
	RegisterPayment(ctx context.Context, packageID string, in PaymentInput) (*Payment, error)
	ListSessions(ctx context.Context, packageID string) ([]*Session, error)
	ListPayments(ctx context.Context, packageID string) ([]*Payment, error)
}

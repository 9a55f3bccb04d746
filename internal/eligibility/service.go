package eligibility

import (
	"context"
	"strings"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
)

// Service computes the candidate seller set for a part request.
type Service interface {
	Resolve(ctx context.Context, request *models.PartRequest) ([]models.SellerProfile, error)
}

type service struct {
	repo Repository
}

// NewService wires eligibility dependencies.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "eligibility repository required")
	}
	return &service{repo: repo}, nil
}

// Resolve returns verified sellers whose specializations cover the request's
// category or part name, whose brand list is empty or contains the request
// make, and who serve the request's parish. An empty result is not an error
// here; the caller decides how a no-match request is surfaced.
func (s *service) Resolve(ctx context.Context, request *models.PartRequest) ([]models.SellerProfile, error) {
	if request == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "part request required")
	}

	candidates, err := s.repo.ListVerifiedForParish(ctx, request.Parish)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list verified sellers")
	}

	eligible := make([]models.SellerProfile, 0, len(candidates))
	for _, seller := range candidates {
		if !matchesSpecialization(seller.Specializations, request.Category, request.PartName) {
			continue
		}
		if !matchesBrand(seller.VehicleBrands, request.VehicleMake) {
			continue
		}
		eligible = append(eligible, seller)
	}
	return eligible, nil
}

func matchesSpecialization(specializations []string, category, partName string) bool {
	if len(specializations) == 0 {
		return false
	}
	cat := normalize(category)
	part := normalize(partName)
	for _, spec := range specializations {
		n := normalize(spec)
		if n == "" {
			continue
		}
		if n == cat || strings.Contains(cat, n) || strings.Contains(part, n) {
			return true
		}
	}
	return false
}

// An empty brand list means the seller accepts all makes.
func matchesBrand(brands []string, vehicleMake string) bool {
	if len(brands) == 0 {
		return true
	}
	want := normalize(vehicleMake)
	for _, brand := range brands {
		if normalize(brand) == want {
			return true
		}
	}
	return false
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

package eligibility

import (
	"context"
	"errors"
	"testing"

	"gorm.io/gorm"

	"github.com/seangolding876/partsfinda-backend/pkg/db/models"
	pkgerrors "github.com/seangolding876/partsfinda-backend/pkg/errors"
)

type fakeRepo struct {
	sellers []models.SellerProfile
	err     error
	parish  string
}

func (f *fakeRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeRepo) ListVerifiedForParish(ctx context.Context, parish string) ([]models.SellerProfile, error) {
	f.parish = parish
	return f.sellers, f.err
}

func TestResolve_matchesSpecializationAndBrand(t *testing.T) {
	match := models.SellerProfile{
		BusinessName:    "Kingston Brakes",
		Specializations: []string{"Brakes"},
		VehicleBrands:   []string{"Toyota", "Honda"},
	}
	wrongBrand := models.SellerProfile{
		BusinessName:    "BMW Only",
		Specializations: []string{"Brakes"},
		VehicleBrands:   []string{"BMW"},
	}
	wrongSpec := models.SellerProfile{
		BusinessName:    "Glass Shop",
		Specializations: []string{"Windshields"},
	}
	allMakes := models.SellerProfile{
		BusinessName:    "General Parts",
		Specializations: []string{"brakes"},
	}

	repo := &fakeRepo{sellers: []models.SellerProfile{match, wrongBrand, wrongSpec, allMakes}}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	request := &models.PartRequest{
		PartName:    "Brake pads",
		Category:    "Brakes",
		VehicleMake: "Toyota",
		Parish:      "Kingston",
	}

	eligible, err := svc.Resolve(context.Background(), request)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if repo.parish != "Kingston" {
		t.Fatalf("queried parish %q, want Kingston", repo.parish)
	}
	if len(eligible) != 2 {
		t.Fatalf("eligible = %d sellers, want 2", len(eligible))
	}
	if eligible[0].BusinessName != "Kingston Brakes" || eligible[1].BusinessName != "General Parts" {
		t.Fatalf("unexpected eligible set: %s, %s", eligible[0].BusinessName, eligible[1].BusinessName)
	}
}

func TestResolve_specializationMatchesPartName(t *testing.T) {
	repo := &fakeRepo{sellers: []models.SellerProfile{{
		BusinessName:    "Radiator House",
		Specializations: []string{"radiator"},
	}}}
	svc, _ := NewService(repo)

	request := &models.PartRequest{
		PartName: "Radiator hose",
		Category: "Cooling",
	}
	eligible, err := svc.Resolve(context.Background(), request)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 1 {
		t.Fatal("part name containing the specialization must match")
	}
}

func TestResolve_emptySpecializationsNeverMatch(t *testing.T) {
	repo := &fakeRepo{sellers: []models.SellerProfile{{BusinessName: "No Specs"}}}
	svc, _ := NewService(repo)

	eligible, err := svc.Resolve(context.Background(), &models.PartRequest{Category: "Brakes"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatal("a seller with no specializations must not match")
	}
}

func TestResolve_emptyResultIsNotAnError(t *testing.T) {
	svc, _ := NewService(&fakeRepo{})
	eligible, err := svc.Resolve(context.Background(), &models.PartRequest{Category: "Brakes"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(eligible) != 0 {
		t.Fatalf("expected no sellers, got %d", len(eligible))
	}
}

func TestResolve_repoErrorWrapped(t *testing.T) {
	svc, _ := NewService(&fakeRepo{err: errors.New("connection refused")})
	_, err := svc.Resolve(context.Background(), &models.PartRequest{})
	if err == nil {
		t.Fatal("expected error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeDependency {
		t.Fatalf("expected dependency error, got %v", err)
	}
}

package services

import (
	"context"
	"testing"

	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/directory"
)

// Service tests run against an in-memory SQLite database with the schema
// applied. The event bus is left nil, so publishes are silently skipped.
func newTestDB(t *testing.T) *db.Service {
	t.Helper()

	database, err := db.New(&db.Config{
		Driver:         db.DriverSQLite,
		DBPath:         ":memory:",
		MaxOpenConns:   1,
		MaxIdleConns:   1,
		AutoInitialize: true,
	})
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database
}

type testServices struct {
	buildings     *BuildingService
	activities    *ActivityService
	phones        *PhoneService
	organizations *OrganizationService
	db            *db.Service
}

func newTestServices(t *testing.T) *testServices {
	t.Helper()

	database := newTestDB(t)
	log := zap.NewNop()
	activities := NewActivityService(database, nil, log)
	return &testServices{
		buildings:     NewBuildingService(database, nil, log),
		activities:    activities,
		phones:        NewPhoneService(database, nil, log),
		organizations: NewOrganizationService(database, nil, activities, log),
		db:            database,
	}
}

func mustCreateBuilding(t *testing.T, s *testServices, address string, lat, lon float64) *directory.Building {
	t.Helper()

	b, err := s.buildings.Create(context.Background(), &directory.CreateBuildingRequest{
		Address:   address,
		Latitude:  lat,
		Longitude: lon,
	})
	if err != nil {
		t.Fatalf("failed to create building %q: %v", address, err)
	}
	return b
}

func mustCreateActivity(t *testing.T, s *testServices, name string, parentID *int64) *directory.Activity {
	t.Helper()

	a, err := s.activities.Create(context.Background(), &directory.CreateActivityRequest{
		Name:     name,
		ParentID: parentID,
	})
	if err != nil {
		t.Fatalf("failed to create activity %q: %v", name, err)
	}
	return a
}

func mustCreateOrganization(t *testing.T, s *testServices, name string, buildingID int64, activityIDs ...int64) *directory.Organization {
	t.Helper()

	o, err := s.organizations.Create(context.Background(), &directory.CreateOrganizationRequest{
		Name:        name,
		BuildingID:  buildingID,
		ActivityIDs: activityIDs,
	})
	if err != nil {
		t.Fatalf("failed to create organization %q: %v", name, err)
	}
	return o
}

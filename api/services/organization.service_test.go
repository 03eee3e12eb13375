package services

import (
	"context"
	"errors"
	"testing"

	"geodirectory/pkg/directory"
	"geodirectory/pkg/shared"
)

func TestOrganizationCreateAttachesRelations(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	meat := mustCreateActivity(t, s, "Meat products", &food.ID)

	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID, meat.ID)

	if org.Building == nil || org.Building.ID != b.ID {
		t.Fatalf("building not attached: %+v", org.Building)
	}
	if len(org.Activities) != 2 {
		t.Errorf("expected 2 activities, got %d", len(org.Activities))
	}
	if org.Phones == nil || len(org.Phones) != 0 {
		t.Errorf("expected empty phone list, got %v", org.Phones)
	}

	if _, err := s.phones.Create(ctx, &directory.CreatePhoneRequest{
		PhoneNumber:    "8 923 666 13 13",
		OrganizationID: &org.ID,
	}); err != nil {
		t.Fatalf("phone create failed: %v", err)
	}

	got, err := s.organizations.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if len(got.Phones) != 1 {
		t.Errorf("expected 1 phone, got %d", len(got.Phones))
	}
}

func TestOrganizationCreateDeduplicatesActivities(t *testing.T) {
	s := newTestServices(t)

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)

	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID, food.ID, food.ID)
	if len(org.Activities) != 1 {
		t.Errorf("expected 1 activity after dedupe, got %d", len(org.Activities))
	}
}

func TestOrganizationCreateBadReferencesLeaveNoTrace(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)

	_, err := s.organizations.Create(ctx, &directory.CreateOrganizationRequest{
		Name:        "Horns and Hooves LLC",
		BuildingID:  999,
		ActivityIDs: []int64{food.ID},
	})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for missing building, got %v", err)
	}

	_, err = s.organizations.Create(ctx, &directory.CreateOrganizationRequest{
		Name:        "Horns and Hooves LLC",
		BuildingID:  b.ID,
		ActivityIDs: []int64{food.ID, 999},
	})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for missing activity, got %v", err)
	}

	// Neither failed create may leave an organization or association row.
	var orgs, assocs int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM organizations").Scan(&orgs); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM organization_activities").Scan(&assocs); err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if orgs != 0 || assocs != 0 {
		t.Errorf("partial write left behind: %d organizations, %d associations", orgs, assocs)
	}
}

func TestOrganizationDuplicateName(t *testing.T) {
	s := newTestServices(t)

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID)

	_, err := s.organizations.Create(context.Background(), &directory.CreateOrganizationRequest{
		Name:        "Horns and Hooves LLC",
		BuildingID:  b.ID,
		ActivityIDs: []int64{food.ID},
	})
	if !errors.Is(err, shared.ErrConflict) {
		t.Errorf("expected conflict for duplicate name, got %v", err)
	}
}

func TestOrganizationGetByName(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	created := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID)

	got, err := s.organizations.GetByName(ctx, "Horns and Hooves LLC")
	if err != nil {
		t.Fatalf("get by name failed: %v", err)
	}
	if got.ID != created.ID {
		t.Errorf("resolved wrong organization: %d", got.ID)
	}

	if _, err := s.organizations.GetByName(ctx, "Unknown Org"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for unknown name, got %v", err)
	}
}

func TestOrganizationsByBuilding(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	occupied := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	vacant := mustCreateBuilding(t, s, "Moscow, Tverskaya 7, floor 2", 55.7649, 37.6049)
	food := mustCreateActivity(t, s, "Food", nil)
	tenant := mustCreateOrganization(t, s, "Horns and Hooves LLC", occupied.ID, food.ID)

	orgs, err := s.organizations.ByBuilding(ctx, occupied.ID)
	if err != nil {
		t.Fatalf("by building failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != tenant.ID {
		t.Errorf("expected only the tenant, got %v", orgs)
	}

	// A building that exists but houses nobody is an empty list, not an error.
	empty, err := s.organizations.ByBuilding(ctx, vacant.ID)
	if err != nil {
		t.Fatalf("by vacant building failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("expected empty list, got %v", empty)
	}

	if _, err := s.organizations.ByBuilding(ctx, 999); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for missing building, got %v", err)
	}
}

func TestOrganizationsByActivityIsExact(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	meat := mustCreateActivity(t, s, "Meat products", &food.ID)

	parent := mustCreateOrganization(t, s, "Food Base LLC", b.ID, food.ID)
	child := mustCreateOrganization(t, s, "Meat Factory LLC", b.ID, meat.ID)

	orgs, err := s.organizations.ByActivity(ctx, food.ID)
	if err != nil {
		t.Fatalf("by activity failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != parent.ID {
		t.Errorf("exact activity lookup must not expand descendants, got %v", orgs)
	}

	orgs, err = s.organizations.ByActivity(ctx, meat.ID)
	if err != nil {
		t.Fatalf("by activity failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != child.ID {
		t.Errorf("expected only the child-tagged organization, got %v", orgs)
	}

	if _, err := s.organizations.ByActivity(ctx, 999); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for missing activity, got %v", err)
	}
}

func TestOrganizationsByActivityTree(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	meat := mustCreateActivity(t, s, "Meat products", &food.ID)
	dairy := mustCreateActivity(t, s, "Dairy products", &food.ID)
	cars := mustCreateActivity(t, s, "Cars", nil)

	base := mustCreateOrganization(t, s, "Food Base LLC", b.ID, food.ID)
	factory := mustCreateOrganization(t, s, "Meat Factory LLC", b.ID, meat.ID)
	farm := mustCreateOrganization(t, s, "Dairy Farm LLC", b.ID, dairy.ID)
	garage := mustCreateOrganization(t, s, "Garage LLC", b.ID, cars.ID)
	both := mustCreateOrganization(t, s, "Combined Plant LLC", b.ID, meat.ID, dairy.ID)

	orgs, err := s.organizations.ByActivityTree(ctx, "Food")
	if err != nil {
		t.Fatalf("by activity tree failed: %v", err)
	}

	got := make(map[int64]int)
	for _, o := range orgs {
		got[o.ID]++
	}
	for _, want := range []int64{base.ID, factory.ID, farm.ID, both.ID} {
		if got[want] != 1 {
			t.Errorf("organization %d appeared %d times, want exactly once", want, got[want])
		}
	}
	if got[garage.ID] != 0 {
		t.Errorf("sibling-tree organization %d leaked into results", garage.ID)
	}

	if _, err := s.organizations.ByActivityTree(ctx, "Unknown"); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for unknown activity name, got %v", err)
	}
}

func TestOrganizationsByRadius(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	near := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	far := mustCreateBuilding(t, s, "Petersburg, Nevsky 20, office 1", 59.9343, 30.3351)
	food := mustCreateActivity(t, s, "Food", nil)

	inside := mustCreateOrganization(t, s, "Horns and Hooves LLC", near.ID, food.ID)
	mustCreateOrganization(t, s, "Northern Branch LLC", far.ID, food.ID)

	orgs, err := s.organizations.ByRadius(ctx, &directory.RadiusQuery{
		Lat: 55.7500, Lon: 37.6200, RadiusKm: 5,
	})
	if err != nil {
		t.Fatalf("by radius failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != inside.ID {
		t.Errorf("expected only the nearby organization, got %v", orgs)
	}
	if len(orgs[0].Activities) != 1 {
		t.Errorf("relations not attached to radius results: %+v", orgs[0])
	}

	_, err = s.organizations.ByRadius(ctx, &directory.RadiusQuery{
		Lat: 55.75, Lon: 37.62, RadiusKm: 0.2,
	})
	if !errors.Is(err, shared.ErrValidation) {
		t.Errorf("expected validation error for sub-minimum radius, got %v", err)
	}
}

func TestOrganizationsByRectangle(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	inBox := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	outBox := mustCreateBuilding(t, s, "Petersburg, Nevsky 20, office 1", 59.9343, 30.3351)
	food := mustCreateActivity(t, s, "Food", nil)

	inside := mustCreateOrganization(t, s, "Horns and Hooves LLC", inBox.ID, food.ID)
	mustCreateOrganization(t, s, "Northern Branch LLC", outBox.ID, food.ID)

	orgs, err := s.organizations.ByRectangle(ctx, &directory.RectangleQuery{
		LatMin: 55.70, LatMax: 55.80, LonMin: 37.50, LonMax: 37.70,
	})
	if err != nil {
		t.Fatalf("by rectangle failed: %v", err)
	}
	if len(orgs) != 1 || orgs[0].ID != inside.ID {
		t.Errorf("expected only the boxed organization, got %v", orgs)
	}
}

func TestOrganizationUpdateReplacesActivitySet(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	meat := mustCreateActivity(t, s, "Meat products", &food.ID)
	dairy := mustCreateActivity(t, s, "Dairy products", &food.ID)

	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID, meat.ID)

	updated, err := s.organizations.Update(ctx, org.ID, &directory.CreateOrganizationRequest{
		Name:        "Horns and Hooves LLC",
		BuildingID:  b.ID,
		ActivityIDs: []int64{meat.ID, dairy.ID},
	})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}

	got := make(map[int64]bool)
	for _, a := range updated.Activities {
		got[a.ID] = true
	}
	if len(got) != 2 || !got[meat.ID] || !got[dairy.ID] || got[food.ID] {
		t.Errorf("activity set not replaced: %+v", updated.Activities)
	}
}

func TestOrganizationUpdateBadReferenceKeepsOldState(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID)

	_, err := s.organizations.Update(ctx, org.ID, &directory.CreateOrganizationRequest{
		Name:        "Renamed LLC",
		BuildingID:  b.ID,
		ActivityIDs: []int64{999},
	})
	if !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for missing activity, got %v", err)
	}

	got, err := s.organizations.GetByID(ctx, org.ID)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if got.Name != "Horns and Hooves LLC" {
		t.Errorf("failed update leaked a rename: %q", got.Name)
	}
	if len(got.Activities) != 1 || got.Activities[0].ID != food.ID {
		t.Errorf("failed update disturbed associations: %+v", got.Activities)
	}
}

func TestOrganizationDeleteHidesEverywhere(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID)

	flagged, err := s.organizations.Delete(ctx, org.ID)
	if err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if !flagged {
		t.Error("expected delete to flag the row")
	}

	if _, err := s.organizations.GetByID(ctx, org.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found after delete, got %v", err)
	}

	orgs, err := s.organizations.ByBuilding(ctx, b.ID)
	if err != nil {
		t.Fatalf("by building failed: %v", err)
	}
	if len(orgs) != 0 {
		t.Errorf("deleted organization still listed for building: %v", orgs)
	}

	orgs, err = s.organizations.ByActivity(ctx, food.ID)
	if err != nil {
		t.Fatalf("by activity failed: %v", err)
	}
	if len(orgs) != 0 {
		t.Errorf("deleted organization still listed for activity: %v", orgs)
	}

	if _, err := s.organizations.Delete(ctx, org.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("expected not found for repeated delete, got %v", err)
	}
}

func TestOrganizationHiddenWhenBuildingDeleted(t *testing.T) {
	s := newTestServices(t)
	ctx := context.Background()

	b := mustCreateBuilding(t, s, "Moscow, Lenina 1, office 3", 55.7558, 37.6173)
	food := mustCreateActivity(t, s, "Food", nil)
	org := mustCreateOrganization(t, s, "Horns and Hooves LLC", b.ID, food.ID)

	if _, err := s.buildings.Delete(ctx, b.ID); err != nil {
		t.Fatalf("building delete failed: %v", err)
	}

	if _, err := s.organizations.GetByID(ctx, org.ID); !errors.Is(err, shared.ErrNotFound) {
		t.Errorf("organization should be hidden once its building is deleted, got %v", err)
	}
}

package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/directory"
	"geodirectory/pkg/geo"
	"geodirectory/pkg/metrics"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/shared"
)

const organizationColumns = `o.id, o.name, o.building_id, o.is_active, o.created_at, o.updated_at,
	b.id, b.address, b.latitude, b.longitude, b.is_active, b.created_at, b.updated_at`

const organizationBase = "SELECT " + organizationColumns + ` FROM organizations o
	JOIN buildings b ON b.id = o.building_id
	WHERE o.is_active = TRUE AND b.is_active = TRUE`

type OrganizationService struct {
	db         *db.Service
	events     *eventPublisher
	activities *ActivityService
	log        *zap.Logger
}

func NewOrganizationService(database *db.Service, bus *embeddednats.EmbeddedNATS, activities *ActivityService, log *zap.Logger) *OrganizationService {
	return &OrganizationService{
		db:         database,
		events:     &eventPublisher{nats: bus, log: log},
		activities: activities,
		log:        log,
	}
}

func scanOrganization(scanner interface{ Scan(...interface{}) error }) (*directory.Organization, error) {
	var o directory.Organization
	var b directory.Building
	var oCreated, oUpdated, bCreated, bUpdated string

	err := scanner.Scan(
		&o.ID, &o.Name, &o.BuildingID, &o.IsActive, &oCreated, &oUpdated,
		&b.ID, &b.Address, &b.Latitude, &b.Longitude, &b.IsActive, &bCreated, &bUpdated,
	)
	if err != nil {
		return nil, err
	}

	if o.CreatedAt, err = parseStamp(oCreated); err != nil {
		return nil, err
	}
	if o.UpdatedAt, err = parseStamp(oUpdated); err != nil {
		return nil, err
	}
	if b.CreatedAt, err = parseStamp(bCreated); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseStamp(bUpdated); err != nil {
		return nil, err
	}
	o.Building = &b
	return &o, nil
}

// scanOrganizations runs a query built on organizationBase and returns bare
// rows, building attached but activities and phones left for attachRelations.
func (s *OrganizationService) scanOrganizations(ctx context.Context, query string, args ...interface{}) ([]directory.Organization, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, storeErr("query organizations", err)
	}
	defer rows.Close()

	orgs := []directory.Organization{}
	for rows.Next() {
		o, err := scanOrganization(rows)
		if err != nil {
			return nil, storeErr("scan organization", err)
		}
		orgs = append(orgs, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("query organizations", err)
	}
	return orgs, nil
}

func (s *OrganizationService) queryOrganizations(ctx context.Context, query string, args ...interface{}) ([]directory.Organization, error) {
	orgs, err := s.scanOrganizations(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if err := s.attachRelations(ctx, orgs); err != nil {
		return nil, err
	}
	return orgs, nil
}

// attachRelations fills Activities and Phones for the given organizations
// with one IN-clause query per relation.
func (s *OrganizationService) attachRelations(ctx context.Context, orgs []directory.Organization) error {
	if len(orgs) == 0 {
		return nil
	}

	index := make(map[int64]*directory.Organization, len(orgs))
	ids := make([]int64, len(orgs))
	for i := range orgs {
		orgs[i].Activities = []directory.Activity{}
		orgs[i].Phones = []directory.Phone{}
		index[orgs[i].ID] = &orgs[i]
		ids[i] = orgs[i].ID
	}

	actQuery := `SELECT oa.organization_id, a.id, a.name, a.level, a.parent_id, a.is_active, a.created_at, a.updated_at
		FROM organization_activities oa
		JOIN activities a ON a.id = oa.activity_id
		WHERE a.is_active = TRUE AND oa.organization_id IN (` + inClause(len(ids)) + ")"
	rows, err := s.db.QueryContext(ctx, actQuery, int64Args(ids)...)
	if err != nil {
		return storeErr("load organization activities", err)
	}
	for rows.Next() {
		var orgID int64
		var a directory.Activity
		var parent sql.NullInt64
		var createdAt, updatedAt string
		if err := rows.Scan(&orgID, &a.ID, &a.Name, &a.Level, &parent, &a.IsActive, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return storeErr("scan organization activity", err)
		}
		if parent.Valid {
			a.ParentID = &parent.Int64
		}
		var parseErr error
		if a.CreatedAt, parseErr = parseStamp(createdAt); parseErr == nil {
			a.UpdatedAt, parseErr = parseStamp(updatedAt)
		}
		if parseErr != nil {
			rows.Close()
			return storeErr("scan organization activity", parseErr)
		}
		if o := index[orgID]; o != nil {
			o.Activities = append(o.Activities, a)
		}
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return storeErr("load organization activities", err)
	}
	rows.Close()

	phoneQuery := "SELECT " + phoneColumns + " FROM phones WHERE is_active = TRUE AND organization_id IN (" +
		inClause(len(ids)) + ")"
	rows, err = s.db.QueryContext(ctx, phoneQuery, int64Args(ids)...)
	if err != nil {
		return storeErr("load organization phones", err)
	}
	defer rows.Close()
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return storeErr("scan organization phone", err)
		}
		if p.OrganizationID == nil {
			continue
		}
		if o := index[*p.OrganizationID]; o != nil {
			o.Phones = append(o.Phones, *p)
		}
	}
	return rows.Err()
}

func (s *OrganizationService) List(ctx context.Context) ([]directory.Organization, error) {
	return s.queryOrganizations(ctx, organizationBase)
}

func (s *OrganizationService) GetByID(ctx context.Context, id int64) (*directory.Organization, error) {
	orgs, err := s.queryOrganizations(ctx, organizationBase+" AND o.id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, fmt.Errorf("organization %d: %w", id, shared.ErrNotFound)
	}
	return &orgs[0], nil
}

func (s *OrganizationService) GetByName(ctx context.Context, name string) (*directory.Organization, error) {
	orgs, err := s.queryOrganizations(ctx, organizationBase+" AND o.name = ?", name)
	if err != nil {
		return nil, err
	}
	if len(orgs) == 0 {
		return nil, fmt.Errorf("organization %q: %w", name, shared.ErrNotFound)
	}
	return &orgs[0], nil
}

// ByBuilding lists the organizations housed in the given building. A
// missing building is an error; a building with no tenants is an empty list.
func (s *OrganizationService) ByBuilding(ctx context.Context, buildingID int64) ([]directory.Organization, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM buildings WHERE id = ? AND is_active = TRUE", buildingID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("building %d: %w", buildingID, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("check building", err)
	}

	return s.queryOrganizations(ctx, organizationBase+" AND o.building_id = ?", buildingID)
}

// ByActivity lists organizations tagged with exactly the given activity,
// with no descendant expansion.
func (s *OrganizationService) ByActivity(ctx context.Context, activityID int64) ([]directory.Organization, error) {
	if _, err := s.activities.GetByID(ctx, activityID); err != nil {
		return nil, err
	}

	query := "SELECT DISTINCT " + organizationColumns + ` FROM organizations o
	JOIN buildings b ON b.id = o.building_id
	JOIN organization_activities oa ON oa.organization_id = o.id
	WHERE o.is_active = TRUE AND b.is_active = TRUE AND oa.activity_id = ?`
	return s.queryOrganizations(ctx, query, activityID)
}

// ByActivityTree resolves an activity by name and lists organizations tagged
// with it or any active descendant.
func (s *OrganizationService) ByActivityTree(ctx context.Context, name string) ([]directory.Organization, error) {
	root, err := s.activities.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}

	ids, err := s.activities.ExpandSubtree(ctx, root.ID)
	if err != nil {
		return nil, err
	}

	query := "SELECT DISTINCT " + organizationColumns + ` FROM organizations o
	JOIN buildings b ON b.id = o.building_id
	JOIN organization_activities oa ON oa.organization_id = o.id
	WHERE o.is_active = TRUE AND b.is_active = TRUE AND oa.activity_id IN (` + inClause(len(ids)) + ")"
	return s.queryOrganizations(ctx, query, int64Args(ids)...)
}

// ByRadius returns organizations whose building lies within the great-circle
// radius. Candidates come from a full scan; the distance test runs here, not
// in SQL, because the embedded backend has no trigonometric functions.
func (s *OrganizationService) ByRadius(ctx context.Context, q *directory.RadiusQuery) ([]directory.Organization, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	metrics.GeoScansTotal.Inc()
	candidates, err := s.scanOrganizations(ctx, organizationBase)
	if err != nil {
		return nil, err
	}

	matched := []directory.Organization{}
	for _, o := range candidates {
		if geo.WithinRadius(q.Lat, q.Lon, o.Building.Latitude, o.Building.Longitude, q.RadiusKm) {
			matched = append(matched, o)
		}
	}
	if err := s.attachRelations(ctx, matched); err != nil {
		return nil, err
	}
	return matched, nil
}

// ByRectangle returns organizations whose building lies inside the bounding
// box, edges inclusive.
func (s *OrganizationService) ByRectangle(ctx context.Context, q *directory.RectangleQuery) ([]directory.Organization, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	metrics.GeoScansTotal.Inc()
	candidates, err := s.scanOrganizations(ctx, organizationBase)
	if err != nil {
		return nil, err
	}

	matched := []directory.Organization{}
	for _, o := range candidates {
		if geo.InRectangle(o.Building.Latitude, o.Building.Longitude, q.LatMin, q.LatMax, q.LonMin, q.LonMax) {
			matched = append(matched, o)
		}
	}
	if err := s.attachRelations(ctx, matched); err != nil {
		return nil, err
	}
	return matched, nil
}

func checkBuildingTx(ctx context.Context, tx *db.Tx, buildingID int64) error {
	var id int64
	err := tx.QueryRowContext(ctx,
		"SELECT id FROM buildings WHERE id = ? AND is_active = TRUE", buildingID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("building %d: %w", buildingID, shared.ErrNotFound)
	}
	if err != nil {
		return storeErr("check building", err)
	}
	return nil
}

func checkActivitiesTx(ctx context.Context, tx *db.Tx, ids []int64) error {
	for _, activityID := range ids {
		var id int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM activities WHERE id = ? AND is_active = TRUE", activityID).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("activity %d: %w", activityID, shared.ErrNotFound)
		}
		if err != nil {
			return storeErr("check activity", err)
		}
	}
	return nil
}

func insertAssociationsTx(ctx context.Context, tx *db.Tx, orgID int64, ids []int64) error {
	for _, activityID := range ids {
		_, err := tx.ExecContext(ctx,
			"INSERT INTO organization_activities (organization_id, activity_id) VALUES (?, ?)",
			orgID, activityID)
		if err != nil {
			return storeErr("insert organization activity", err)
		}
	}
	return nil
}

// Create inserts the organization row and its activity associations in one
// transaction. Every referenced id is verified first, so a bad reference
// leaves no partial write behind.
func (s *OrganizationService) Create(ctx context.Context, req *directory.CreateOrganizationRequest) (*directory.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	activityIDs := req.UniqueActivityIDs()

	var id int64
	err := s.db.Transaction(ctx, func(tx *db.Tx) error {
		if err := checkBuildingTx(ctx, tx, req.BuildingID); err != nil {
			return err
		}
		if err := checkActivitiesTx(ctx, tx, activityIDs); err != nil {
			return err
		}

		now := nowStamp()
		err := tx.QueryRowContext(ctx,
			`INSERT INTO organizations (name, building_id, is_active, created_at, updated_at)
			 VALUES (?, ?, TRUE, ?, ?) RETURNING id`,
			req.Name, req.BuildingID, now, now).Scan(&id)
		if err != nil {
			return storeErr("create organization", err)
		}

		return insertAssociationsTx(ctx, tx, id, activityIDs)
	})
	if err != nil {
		return nil, err
	}

	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityOrganization, id, shared.EventTypeCreated, o)
	return o, nil
}

// Update rewrites the organization row and replaces its activity set in one
// transaction. The association table never reflects a half-applied update.
func (s *OrganizationService) Update(ctx context.Context, id int64, req *directory.CreateOrganizationRequest) (*directory.Organization, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	activityIDs := req.UniqueActivityIDs()

	err := s.db.Transaction(ctx, func(tx *db.Tx) error {
		var existing int64
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM organizations WHERE id = ? AND is_active = TRUE", id).Scan(&existing)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("organization %d: %w", id, shared.ErrNotFound)
		}
		if err != nil {
			return storeErr("check organization", err)
		}

		if err := checkBuildingTx(ctx, tx, req.BuildingID); err != nil {
			return err
		}
		if err := checkActivitiesTx(ctx, tx, activityIDs); err != nil {
			return err
		}

		result, err := tx.ExecContext(ctx,
			`UPDATE organizations SET name = ?, building_id = ?, updated_at = ?
			 WHERE id = ? AND is_active = TRUE`,
			req.Name, req.BuildingID, nowStamp(), id)
		if err != nil {
			return storeErr("update organization", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("update organization %d affected no rows: %w", id, shared.ErrConflict)
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM organization_activities WHERE organization_id = ?", id); err != nil {
			return storeErr("clear organization activities", err)
		}
		return insertAssociationsTx(ctx, tx, id, activityIDs)
	})
	if err != nil {
		return nil, err
	}

	o, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityOrganization, id, shared.EventTypeUpdated, o)
	return o, nil
}

func (s *OrganizationService) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE organizations SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE",
		nowStamp(), id)
	if err != nil {
		return false, storeErr("delete organization", err)
	}

	n, _ := result.RowsAffected()
	flagged := n > 0
	if flagged {
		go s.events.publish(shared.EntityOrganization, id, shared.EventTypeDeleted, nil)
	}
	return flagged, nil
}

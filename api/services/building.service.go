package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/directory"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/shared"
)

const buildingColumns = "id, address, latitude, longitude, is_active, created_at, updated_at"

type BuildingService struct {
	db     *db.Service
	events *eventPublisher
	log    *zap.Logger
}

func NewBuildingService(database *db.Service, bus *embeddednats.EmbeddedNATS, log *zap.Logger) *BuildingService {
	return &BuildingService{
		db:     database,
		events: &eventPublisher{nats: bus, log: log},
		log:    log,
	}
}

func scanBuilding(scanner interface{ Scan(...interface{}) error }) (*directory.Building, error) {
	var b directory.Building
	var createdAt, updatedAt string

	err := scanner.Scan(&b.ID, &b.Address, &b.Latitude, &b.Longitude, &b.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if b.CreatedAt, err = parseStamp(createdAt); err != nil {
		return nil, err
	}
	if b.UpdatedAt, err = parseStamp(updatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

func (s *BuildingService) List(ctx context.Context) ([]directory.Building, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+buildingColumns+" FROM buildings WHERE is_active = TRUE")
	if err != nil {
		return nil, storeErr("list buildings", err)
	}
	defer rows.Close()

	buildings := []directory.Building{}
	for rows.Next() {
		b, err := scanBuilding(rows)
		if err != nil {
			return nil, storeErr("scan building", err)
		}
		buildings = append(buildings, *b)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list buildings", err)
	}
	return buildings, nil
}

func (s *BuildingService) GetByID(ctx context.Context, id int64) (*directory.Building, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+buildingColumns+" FROM buildings WHERE id = ? AND is_active = TRUE", id)

	b, err := scanBuilding(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("building %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get building", err)
	}
	return b, nil
}

func (s *BuildingService) Create(ctx context.Context, req *directory.CreateBuildingRequest) (*directory.Building, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := nowStamp()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO buildings (address, latitude, longitude, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, ?, ?) RETURNING id`,
		req.Address, req.Latitude, req.Longitude, now, now).Scan(&id)
	if err != nil {
		return nil, storeErr("create building", err)
	}

	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityBuilding, id, shared.EventTypeCreated, b)
	return b, nil
}

func (s *BuildingService) Update(ctx context.Context, id int64, req *directory.CreateBuildingRequest) (*directory.Building, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE buildings SET address = ?, latitude = ?, longitude = ?, updated_at = ?
		 WHERE id = ? AND is_active = TRUE`,
		req.Address, req.Latitude, req.Longitude, nowStamp(), id)
	if err != nil {
		return nil, storeErr("update building", err)
	}

	// The row existed a moment ago; zero rows affected means a concurrent
	// soft-delete raced this update.
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update building %d affected no rows: %w", id, shared.ErrConflict)
	}

	b, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityBuilding, id, shared.EventTypeUpdated, b)
	return b, nil
}

func (s *BuildingService) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE buildings SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE",
		nowStamp(), id)
	if err != nil {
		return false, storeErr("delete building", err)
	}

	n, _ := result.RowsAffected()
	flagged := n > 0
	if flagged {
		go s.events.publish(shared.EntityBuilding, id, shared.EventTypeDeleted, nil)
	}
	return flagged, nil
}

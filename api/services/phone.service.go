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

const phoneColumns = "id, phone_number, organization_id, is_active, created_at, updated_at"

type PhoneService struct {
	db     *db.Service
	events *eventPublisher
	log    *zap.Logger
}

func NewPhoneService(database *db.Service, bus *embeddednats.EmbeddedNATS, log *zap.Logger) *PhoneService {
	return &PhoneService{
		db:     database,
		events: &eventPublisher{nats: bus, log: log},
		log:    log,
	}
}

func scanPhone(scanner interface{ Scan(...interface{}) error }) (*directory.Phone, error) {
	var p directory.Phone
	var org sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(&p.ID, &p.PhoneNumber, &org, &p.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if org.Valid {
		p.OrganizationID = &org.Int64
	}
	if p.CreatedAt, err = parseStamp(createdAt); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseStamp(updatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *PhoneService) List(ctx context.Context) ([]directory.Phone, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+phoneColumns+" FROM phones WHERE is_active = TRUE")
	if err != nil {
		return nil, storeErr("list phones", err)
	}
	defer rows.Close()

	phones := []directory.Phone{}
	for rows.Next() {
		p, err := scanPhone(rows)
		if err != nil {
			return nil, storeErr("scan phone", err)
		}
		phones = append(phones, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list phones", err)
	}
	return phones, nil
}

func (s *PhoneService) GetByID(ctx context.Context, id int64) (*directory.Phone, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+phoneColumns+" FROM phones WHERE id = ? AND is_active = TRUE", id)

	p, err := scanPhone(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("phone %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get phone", err)
	}
	return p, nil
}

func (s *PhoneService) checkOrganization(ctx context.Context, orgID int64) error {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM organizations WHERE id = ? AND is_active = TRUE", orgID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("organization %d: %w", orgID, shared.ErrNotFound)
	}
	if err != nil {
		return storeErr("check organization", err)
	}
	return nil
}

func (s *PhoneService) Create(ctx context.Context, req *directory.CreatePhoneRequest) (*directory.Phone, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if req.OrganizationID != nil {
		if err := s.checkOrganization(ctx, *req.OrganizationID); err != nil {
			return nil, err
		}
	}

	now := nowStamp()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO phones (phone_number, organization_id, is_active, created_at, updated_at)
		 VALUES (?, ?, TRUE, ?, ?) RETURNING id`,
		req.PhoneNumber, req.OrganizationID, now, now).Scan(&id)
	if err != nil {
		return nil, storeErr("create phone", err)
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityPhone, id, shared.EventTypeCreated, p)
	return p, nil
}

func (s *PhoneService) Update(ctx context.Context, id int64, req *directory.CreatePhoneRequest) (*directory.Phone, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if _, err := s.GetByID(ctx, id); err != nil {
		return nil, err
	}
	if req.OrganizationID != nil {
		if err := s.checkOrganization(ctx, *req.OrganizationID); err != nil {
			return nil, err
		}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE phones SET phone_number = ?, organization_id = ?, updated_at = ?
		 WHERE id = ? AND is_active = TRUE`,
		req.PhoneNumber, req.OrganizationID, nowStamp(), id)
	if err != nil {
		return nil, storeErr("update phone", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("update phone %d affected no rows: %w", id, shared.ErrConflict)
	}

	p, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityPhone, id, shared.EventTypeUpdated, p)
	return p, nil
}

func (s *PhoneService) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE phones SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE",
		nowStamp(), id)
	if err != nil {
		return false, storeErr("delete phone", err)
	}

	n, _ := result.RowsAffected()
	flagged := n > 0
	if flagged {
		go s.events.publish(shared.EntityPhone, id, shared.EventTypeDeleted, nil)
	}
	return flagged, nil
}

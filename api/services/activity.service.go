package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"geodirectory/db"
	"geodirectory/pkg/directory"
	"geodirectory/pkg/metrics"
	embeddednats "geodirectory/pkg/services/embedded-nats"
	"geodirectory/pkg/shared"
)

const activityColumns = "id, name, level, parent_id, is_active, created_at, updated_at"

type ActivityService struct {
	db     *db.Service
	events *eventPublisher
	log    *zap.Logger
}

func NewActivityService(database *db.Service, bus *embeddednats.EmbeddedNATS, log *zap.Logger) *ActivityService {
	return &ActivityService{
		db:     database,
		events: &eventPublisher{nats: bus, log: log},
		log:    log,
	}
}

func scanActivity(scanner interface{ Scan(...interface{}) error }) (*directory.Activity, error) {
	var a directory.Activity
	var parent sql.NullInt64
	var createdAt, updatedAt string

	err := scanner.Scan(&a.ID, &a.Name, &a.Level, &parent, &a.IsActive, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if parent.Valid {
		a.ParentID = &parent.Int64
	}
	if a.CreatedAt, err = parseStamp(createdAt); err != nil {
		return nil, err
	}
	if a.UpdatedAt, err = parseStamp(updatedAt); err != nil {
		return nil, err
	}
	return &a, nil
}

func (s *ActivityService) List(ctx context.Context) ([]directory.Activity, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE is_active = TRUE")
	if err != nil {
		return nil, storeErr("list activities", err)
	}
	defer rows.Close()

	activities := []directory.Activity{}
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, storeErr("scan activity", err)
		}
		activities = append(activities, *a)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("list activities", err)
	}
	return activities, nil
}

func (s *ActivityService) GetByID(ctx context.Context, id int64) (*directory.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE id = ? AND is_active = TRUE", id)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get activity", err)
	}
	return a, nil
}

func (s *ActivityService) GetByName(ctx context.Context, name string) (*directory.Activity, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+activityColumns+" FROM activities WHERE name = ? AND is_active = TRUE", name)

	a, err := scanActivity(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %q: %w", name, shared.ErrNotFound)
	}
	if err != nil {
		return nil, storeErr("get activity", err)
	}
	return a, nil
}

// ExpandSubtree returns the ids of the activity rooted at rootID together
// with every active descendant, breadth first. The visited set makes the
// walk terminate even if the parent chain in storage forms a cycle.
func (s *ActivityService) ExpandSubtree(ctx context.Context, rootID int64) ([]int64, error) {
	visited := map[int64]bool{rootID: true}
	order := []int64{rootID}
	frontier := []int64{rootID}
	levels := 1

	for len(frontier) > 0 {
		query := "SELECT id FROM activities WHERE is_active = TRUE AND parent_id IN (" +
			inClause(len(frontier)) + ")"
		rows, err := s.db.QueryContext(ctx, query, int64Args(frontier)...)
		if err != nil {
			return nil, storeErr("expand activity subtree", err)
		}

		next := []int64{}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return nil, storeErr("expand activity subtree", err)
			}
			if !visited[id] {
				visited[id] = true
				order = append(order, id)
				next = append(next, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return nil, storeErr("expand activity subtree", err)
		}
		rows.Close()

		if len(next) > 0 {
			levels++
		}
		frontier = next
	}

	metrics.TreeExpansionLevels.Observe(float64(levels))
	return order, nil
}

func (s *ActivityService) Create(ctx context.Context, req *directory.CreateActivityRequest) (*directory.Activity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	level := 1
	if req.ParentID != nil {
		parent, err := s.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		level = parent.Level + 1
		if level > directory.ActivityMaxLevel {
			return nil, fmt.Errorf("activity nesting is limited to %d levels: %w",
				directory.ActivityMaxLevel, shared.ErrValidation)
		}
	}

	now := nowStamp()
	var id int64
	err := s.db.QueryRowContext(ctx,
		`INSERT INTO activities (name, level, parent_id, is_active, created_at, updated_at)
		 VALUES (?, ?, ?, TRUE, ?, ?) RETURNING id`,
		req.Name, level, req.ParentID, now, now).Scan(&id)
	if err != nil {
		return nil, storeErr("create activity", err)
	}

	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityActivity, id, shared.EventTypeCreated, a)
	return a, nil
}

// subtreeHeight returns the number of levels in the activity's subtree,
// counting the node itself as one.
func (s *ActivityService) subtreeHeight(ctx context.Context, rootID int64) (int, error) {
	visited := map[int64]bool{rootID: true}
	frontier := []int64{rootID}
	height := 1

	for {
		query := "SELECT id FROM activities WHERE is_active = TRUE AND parent_id IN (" +
			inClause(len(frontier)) + ")"
		rows, err := s.db.QueryContext(ctx, query, int64Args(frontier)...)
		if err != nil {
			return 0, storeErr("measure activity subtree", err)
		}

		next := []int64{}
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				rows.Close()
				return 0, storeErr("measure activity subtree", err)
			}
			if !visited[id] {
				visited[id] = true
				next = append(next, id)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, storeErr("measure activity subtree", err)
		}
		rows.Close()

		if len(next) == 0 {
			return height, nil
		}
		height++
		frontier = next
	}
}

func (s *ActivityService) Update(ctx context.Context, id int64, req *directory.CreateActivityRequest) (*directory.Activity, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	current, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	subtree, err := s.ExpandSubtree(ctx, id)
	if err != nil {
		return nil, err
	}

	level := 1
	if req.ParentID != nil {
		if *req.ParentID == id {
			return nil, fmt.Errorf("activity cannot be its own parent: %w", shared.ErrValidation)
		}
		parent, err := s.GetByID(ctx, *req.ParentID)
		if err != nil {
			return nil, err
		}
		// Re-parenting under one's own descendant would close a cycle.
		for _, member := range subtree {
			if member == *req.ParentID {
				return nil, fmt.Errorf("parent_id %d is inside the activity's own subtree: %w",
					*req.ParentID, shared.ErrValidation)
			}
		}
		level = parent.Level + 1
	}

	// The deepest descendant moves together with the node, so the cap is
	// checked against the whole subtree, not just the node itself.
	height, err := s.subtreeHeight(ctx, id)
	if err != nil {
		return nil, err
	}
	if level+height-1 > directory.ActivityMaxLevel {
		return nil, fmt.Errorf("activity nesting is limited to %d levels: %w",
			directory.ActivityMaxLevel, shared.ErrValidation)
	}

	delta := level - current.Level
	err = s.db.Transaction(ctx, func(tx *db.Tx) error {
		result, err := tx.ExecContext(ctx,
			`UPDATE activities SET name = ?, level = ?, parent_id = ?, updated_at = ?
			 WHERE id = ? AND is_active = TRUE`,
			req.Name, level, req.ParentID, nowStamp(), id)
		if err != nil {
			return storeErr("update activity", err)
		}
		if n, _ := result.RowsAffected(); n == 0 {
			return fmt.Errorf("update activity %d affected no rows: %w", id, shared.ErrConflict)
		}

		// Descendant levels shift by the same amount as the moved node.
		descendants := subtree[1:]
		if delta != 0 && len(descendants) > 0 {
			query := "UPDATE activities SET level = level + ?, updated_at = ? WHERE id IN (" +
				inClause(len(descendants)) + ")"
			args := append([]interface{}{delta, nowStamp()}, int64Args(descendants)...)
			if _, err := tx.ExecContext(ctx, query, args...); err != nil {
				return storeErr("shift subtree levels", err)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	go s.events.publish(shared.EntityActivity, id, shared.EventTypeUpdated, a)
	return a, nil
}

func (s *ActivityService) Delete(ctx context.Context, id int64) (bool, error) {
	if _, err := s.GetByID(ctx, id); err != nil {
		return false, err
	}

	result, err := s.db.ExecContext(ctx,
		"UPDATE activities SET is_active = FALSE, updated_at = ? WHERE id = ? AND is_active = TRUE",
		nowStamp(), id)
	if err != nil {
		return false, storeErr("delete activity", err)
	}

	n, _ := result.RowsAffected()
	flagged := n > 0
	if flagged {
		go s.events.publish(shared.EntityActivity, id, shared.EventTypeDeleted, nil)
	}
	return flagged, nil
}

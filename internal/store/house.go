package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/dukerupert/stockhome/internal/apperr"
	"github.com/dukerupert/stockhome/internal/model"
)

type HouseStore struct {
	db *sql.DB
}

func NewHouseStore(db *sql.DB) *HouseStore {
	return &HouseStore{db: db}
}

func scanHouse(scanner interface{ Scan(...any) error }) (*model.House, error) {
	var h model.House
	err := scanner.Scan(&h.ID, &h.Name, &h.Address, &h.OwnerID, &h.CreatedAt, &h.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &h, nil
}

func scanMembership(scanner interface{ Scan(...any) error }) (*model.Membership, error) {
	var m model.Membership
	var invitedBy sql.NullInt64
	err := scanner.Scan(&m.ID, &m.HouseID, &m.UserID, &m.Role, &m.Status, &invitedBy, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return nil, err
	}
	m.InvitedBy = nullInt64(invitedBy)
	return &m, nil
}

const houseCols = `id, name, address, owner_id, created_at, updated_at`
const memberCols = `m.id, m.house_id, m.user_id, m.role, m.status, m.invited_by, m.created_at, m.updated_at`

// Create inserts a house and makes its owner an active admin in the same
// transaction.
func (s *HouseStore) Create(name, address string, ownerID int64) (*model.House, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("house name is required")
	}

	var id int64
	err := withTx(s.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(
			`INSERT INTO houses (name, address, owner_id) VALUES (?, ?, ?)`,
			name, strings.TrimSpace(address), ownerID,
		)
		if err != nil {
			return fmt.Errorf("insert house: %w", apperr.Classify(err))
		}
		id, err = result.LastInsertId()
		if err != nil {
			return fmt.Errorf("last insert id: %w", err)
		}
		_, err = tx.Exec(
			`INSERT INTO house_members (house_id, user_id, role, status) VALUES (?, ?, ?, ?)`,
			id, ownerID, model.RoleAdmin, model.MemberActive,
		)
		if err != nil {
			return fmt.Errorf("insert owner membership: %w", apperr.Classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetByID(id)
}

func (s *HouseStore) GetByID(id int64) (*model.House, error) {
	row := s.db.QueryRow(`SELECT `+houseCols+` FROM houses WHERE id = ? AND `+notDeleted, id)
	h, err := scanHouse(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get house: %w", err)
	}
	return h, nil
}

// ListForUser returns the houses where the user is an active member.
func (s *HouseStore) ListForUser(userID int64) ([]model.House, error) {
	rows, err := s.db.Query(
		`SELECT h.id, h.name, h.address, h.owner_id, h.created_at, h.updated_at
		 FROM houses h
		 JOIN house_members m ON m.house_id = h.id
		 WHERE m.user_id = ? AND m.status = ? AND m.deleted_at IS NULL AND h.deleted_at IS NULL
		 ORDER BY h.name ASC`,
		userID, model.MemberActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list houses: %w", err)
	}
	defer rows.Close()

	var houses []model.House
	for rows.Next() {
		h, err := scanHouse(rows)
		if err != nil {
			return nil, fmt.Errorf("scan house: %w", err)
		}
		houses = append(houses, *h)
	}
	return houses, rows.Err()
}

// ListIDs returns every live house id, for background scans.
func (s *HouseStore) ListIDs() ([]int64, error) {
	rows, err := s.db.Query(`SELECT id FROM houses WHERE ` + notDeleted + ` ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list house ids: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan house id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *HouseStore) Update(id int64, name, address string) (*model.House, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.Validation("house name is required")
	}
	result, err := s.db.Exec(
		`UPDATE houses SET name = ?, address = ?, updated_at = ? WHERE id = ? AND `+notDeleted,
		name, strings.TrimSpace(address), now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update house: %w", apperr.Classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("house")
	}
	return s.GetByID(id)
}

// Delete soft-deletes the house together with its memberships.
func (s *HouseStore) Delete(id int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		if err := softDelete(tx, "houses", "house", id, ""); err != nil {
			return err
		}
		_, err := tx.Exec(
			`UPDATE house_members SET deleted_at = ?, updated_at = ? WHERE house_id = ? AND `+notDeleted,
			now(), now(), id,
		)
		if err != nil {
			return fmt.Errorf("delete house members: %w", err)
		}
		return nil
	})
}

// --- Membership methods ---

func getMember(db dbtx, houseID, userID int64) (*model.Membership, error) {
	row := db.QueryRow(
		`SELECT `+memberCols+` FROM house_members m WHERE m.house_id = ? AND m.user_id = ? AND m.deleted_at IS NULL`,
		houseID, userID,
	)
	m, err := scanMembership(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

// GetMember returns the live membership of user in house, whatever its status.
func (s *HouseStore) GetMember(houseID, userID int64) (*model.Membership, error) {
	return getMember(s.db, houseID, userID)
}

func (s *HouseStore) ListMembers(houseID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+`, u.name, u.email
		 FROM house_members m
		 JOIN users u ON u.id = m.user_id
		 WHERE m.house_id = ? AND m.deleted_at IS NULL
		 ORDER BY m.role ASC, u.name ASC`,
		houseID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.Membership
	for rows.Next() {
		var m model.Membership
		var invitedBy sql.NullInt64
		err := rows.Scan(&m.ID, &m.HouseID, &m.UserID, &m.Role, &m.Status, &invitedBy,
			&m.CreatedAt, &m.UpdatedAt, &m.UserName, &m.UserEmail)
		if err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		m.InvitedBy = nullInt64(invitedBy)
		members = append(members, m)
	}
	return members, rows.Err()
}

// Invite adds a pending membership. A second live membership for the same
// user is a conflict.
func (s *HouseStore) Invite(houseID, userID int64, role string, invitedBy int64) (*model.Membership, error) {
	if !model.ValidRole(role) {
		return nil, apperr.Validation("invalid role %q", role)
	}
	_, err := s.db.Exec(
		`INSERT INTO house_members (house_id, user_id, role, status, invited_by) VALUES (?, ?, ?, ?, ?)`,
		houseID, userID, role, model.MemberPending, invitedBy,
	)
	if err != nil {
		if errors.Is(apperr.Classify(err), apperr.ErrConflict) {
			return nil, apperr.Conflict("user is already a member or has a pending invitation")
		}
		return nil, fmt.Errorf("insert invitation: %w", apperr.Classify(err))
	}
	return s.GetMember(houseID, userID)
}

// ListInvitations returns the user's pending invitations with house names.
func (s *HouseStore) ListInvitations(userID int64) ([]model.Membership, error) {
	rows, err := s.db.Query(
		`SELECT `+memberCols+`, h.name
		 FROM house_members m
		 JOIN houses h ON h.id = m.house_id
		 WHERE m.user_id = ? AND m.status = ? AND m.deleted_at IS NULL AND h.deleted_at IS NULL
		 ORDER BY m.created_at DESC`,
		userID, model.MemberPending,
	)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var invites []model.Membership
	for rows.Next() {
		var m model.Membership
		var invitedBy sql.NullInt64
		err := rows.Scan(&m.ID, &m.HouseID, &m.UserID, &m.Role, &m.Status, &invitedBy,
			&m.CreatedAt, &m.UpdatedAt, &m.HouseName)
		if err != nil {
			return nil, fmt.Errorf("scan invitation: %w", err)
		}
		m.InvitedBy = nullInt64(invitedBy)
		invites = append(invites, m)
	}
	return invites, rows.Err()
}

// Accept activates a pending invitation.
func (s *HouseStore) Accept(houseID, userID int64) (*model.Membership, error) {
	result, err := s.db.Exec(
		`UPDATE house_members SET status = ?, updated_at = ?
		 WHERE house_id = ? AND user_id = ? AND status = ? AND `+notDeleted,
		model.MemberActive, now(), houseID, userID, model.MemberPending,
	)
	if err != nil {
		return nil, fmt.Errorf("accept invitation: %w", apperr.Classify(err))
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, apperr.NotFound("invitation")
	}
	return s.GetMember(houseID, userID)
}

// Decline soft-deletes a pending invitation.
func (s *HouseStore) Decline(houseID, userID int64) error {
	m, err := s.GetMember(houseID, userID)
	if err != nil {
		return err
	}
	if m == nil || m.Status != model.MemberPending {
		return apperr.NotFound("invitation")
	}
	return softDelete(s.db, "house_members", "invitation", m.ID, "")
}

// SetRole changes a member's role. Demoting the last active admin is a conflict.
func (s *HouseStore) SetRole(houseID, userID int64, role string) (*model.Membership, error) {
	if !model.ValidRole(role) {
		return nil, apperr.Validation("invalid role %q", role)
	}
	err := withTx(s.db, func(tx *sql.Tx) error {
		m, err := getMember(tx, houseID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("member")
		}
		if role != model.RoleAdmin {
			if err := guardLastAdmin(tx, m); err != nil {
				return err
			}
		}
		_, err = tx.Exec(
			`UPDATE house_members SET role = ?, updated_at = ? WHERE id = ?`,
			role, now(), m.ID,
		)
		if err != nil {
			return fmt.Errorf("update role: %w", apperr.Classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMember(houseID, userID)
}

// SetStatus activates or deactivates a member. Deactivating the last active
// admin is a conflict.
func (s *HouseStore) SetStatus(houseID, userID int64, status string) (*model.Membership, error) {
	if status != model.MemberActive && status != model.MemberInactive {
		return nil, apperr.Validation("invalid member status %q", status)
	}
	err := withTx(s.db, func(tx *sql.Tx) error {
		m, err := getMember(tx, houseID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("member")
		}
		if m.Status == model.MemberPending {
			return apperr.Conflict("invitation has not been accepted")
		}
		if status != model.MemberActive {
			if err := guardLastAdmin(tx, m); err != nil {
				return err
			}
		}
		_, err = tx.Exec(
			`UPDATE house_members SET status = ?, updated_at = ? WHERE id = ?`,
			status, now(), m.ID,
		)
		if err != nil {
			return fmt.Errorf("update member status: %w", apperr.Classify(err))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetMember(houseID, userID)
}

// RemoveMember soft-deletes a membership. Removing the last active admin is
// a conflict.
func (s *HouseStore) RemoveMember(houseID, userID int64) error {
	return withTx(s.db, func(tx *sql.Tx) error {
		m, err := getMember(tx, houseID, userID)
		if err != nil {
			return err
		}
		if m == nil {
			return apperr.NotFound("member")
		}
		if err := guardLastAdmin(tx, m); err != nil {
			return err
		}
		return softDelete(tx, "house_members", "member", m.ID, "")
	})
}

// guardLastAdmin fails when m is the only active admin left in its house.
func guardLastAdmin(tx dbtx, m *model.Membership) error {
	if m.Role != model.RoleAdmin || m.Status != model.MemberActive {
		return nil
	}
	var others int
	err := tx.QueryRow(
		`SELECT COUNT(*) FROM house_members
		 WHERE house_id = ? AND id <> ? AND role = ? AND status = ? AND `+notDeleted,
		m.HouseID, m.ID, model.RoleAdmin, model.MemberActive,
	).Scan(&others)
	if err != nil {
		return fmt.Errorf("count admins: %w", err)
	}
	if others == 0 {
		return apperr.Conflict("a house must keep at least one active admin")
	}
	return nil
}

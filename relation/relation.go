// Package relation implements NamedDataRelation: a many-to-many,
// reference-counted relation table between object ids.
//
// Grounded on original_source/.../named_data/relation_db.rs, backed here
// by database/sql over modernc.org/sqlite (a pure-Go sqlite driver, so the
// core stays cgo-free) rather than the original's rusqlite.
//
// One correction from the Rust source: put_relation there upserts with
// `ON CONFLICT(object_id) DO UPDATE`, but the table's own primary key is
// the triple (object_id, target_id, relation_type) — conflicting on
// object_id alone would collapse distinct (target_id, relation_type)
// rows for the same object. The upsert here conflicts on the full primary
// key, which is what the data model (many rows per object_id, one per
// distinct target/relation pair) actually requires.
package relation

import (
	"database/sql"

	_ "modernc.org/sqlite"

	"github.com/buckyos/ndn-core/ndnerr"
)

const schema = `
CREATE TABLE IF NOT EXISTS object_relations (
	object_id     TEXT NOT NULL,
	target_id     TEXT NOT NULL,
	relation_type TEXT NOT NULL,
	ref_count     INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (object_id, target_id, relation_type)
);
CREATE INDEX IF NOT EXISTS idx_object_relations_object ON object_relations(object_id, relation_type);
`

// Store is the relation table's handle.
type Store struct {
	db *sql.DB
}

// Relation is one row of the object_relations table.
type Relation struct {
	ObjectId     string
	TargetId     string
	RelationType string
	RefCount     int64
}

func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "open relation database failed", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, ndnerr.Wrap(ndnerr.DbError, "create relation schema failed", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "close relation database failed", err)
	}
	return nil
}

// PutRelation adds (or, if already present, increments the reference count
// of) one relation row.
func (s *Store) PutRelation(objectId, targetId, relationType string) error {
	_, err := s.db.Exec(`
		INSERT INTO object_relations (object_id, target_id, relation_type, ref_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(object_id, target_id, relation_type)
		DO UPDATE SET ref_count = ref_count + 1
	`, objectId, targetId, relationType)
	if err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "put relation failed", err)
	}
	return nil
}

// GetRelations returns every target of objectId under relationType.
func (s *Store) GetRelations(objectId, relationType string) ([]Relation, error) {
	rows, err := s.db.Query(`
		SELECT object_id, target_id, relation_type, ref_count
		FROM object_relations
		WHERE object_id = ? AND relation_type = ?
		ORDER BY target_id
	`, objectId, relationType)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "query relations failed", err)
	}
	defer rows.Close()
	return scanRelations(rows)
}

// GetRelationByPage is GetRelations with offset/limit pagination.
func (s *Store) GetRelationByPage(objectId, relationType string, offset, limit int64) ([]Relation, error) {
	rows, err := s.db.Query(`
		SELECT object_id, target_id, relation_type, ref_count
		FROM object_relations
		WHERE object_id = ? AND relation_type = ?
		ORDER BY target_id
		LIMIT ? OFFSET ?
	`, objectId, relationType, limit, offset)
	if err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "query relation page failed", err)
	}
	defer rows.Close()
	return scanRelations(rows)
}

func scanRelations(rows *sql.Rows) ([]Relation, error) {
	var out []Relation
	for rows.Next() {
		var r Relation
		if err := rows.Scan(&r.ObjectId, &r.TargetId, &r.RelationType, &r.RefCount); err != nil {
			return nil, ndnerr.Wrap(ndnerr.DbError, "scan relation row failed", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, ndnerr.Wrap(ndnerr.DbError, "iterate relation rows failed", err)
	}
	return out, nil
}

// DecreaseRelation decrements a relation's reference count, deleting the
// row once it reaches zero. Returns the resulting ref_count (0 if deleted).
func (s *Store) DecreaseRelation(objectId, targetId, relationType string) (int64, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, ndnerr.Wrap(ndnerr.DbError, "begin decrease-relation transaction failed", err)
	}
	defer tx.Rollback()

	var refCount int64
	err = tx.QueryRow(`
		SELECT ref_count FROM object_relations
		WHERE object_id = ? AND target_id = ? AND relation_type = ?
	`, objectId, targetId, relationType).Scan(&refCount)
	if err == sql.ErrNoRows {
		return 0, ndnerr.New(ndnerr.NotFound, "relation not found")
	}
	if err != nil {
		return 0, ndnerr.Wrap(ndnerr.DbError, "read relation ref count failed", err)
	}

	if refCount <= 1 {
		if _, err := tx.Exec(`
			DELETE FROM object_relations
			WHERE object_id = ? AND target_id = ? AND relation_type = ?
		`, objectId, targetId, relationType); err != nil {
			return 0, ndnerr.Wrap(ndnerr.DbError, "delete exhausted relation failed", err)
		}
		if err := tx.Commit(); err != nil {
			return 0, ndnerr.Wrap(ndnerr.DbError, "commit decrease-relation failed", err)
		}
		return 0, nil
	}

	if _, err := tx.Exec(`
		UPDATE object_relations SET ref_count = ref_count - 1
		WHERE object_id = ? AND target_id = ? AND relation_type = ?
	`, objectId, targetId, relationType); err != nil {
		return 0, ndnerr.Wrap(ndnerr.DbError, "decrement relation ref count failed", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, ndnerr.Wrap(ndnerr.DbError, "commit decrease-relation failed", err)
	}
	return refCount - 1, nil
}

// RemoveRelation unconditionally deletes one relation row, ignoring its
// reference count.
func (s *Store) RemoveRelation(objectId, targetId, relationType string) error {
	_, err := s.db.Exec(`
		DELETE FROM object_relations
		WHERE object_id = ? AND target_id = ? AND relation_type = ?
	`, objectId, targetId, relationType)
	if err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "remove relation failed", err)
	}
	return nil
}

// RemoveObjectRelations deletes every relation row for objectId, regardless
// of target or relation type — used when the object itself is deleted.
func (s *Store) RemoveObjectRelations(objectId string) error {
	_, err := s.db.Exec(`DELETE FROM object_relations WHERE object_id = ?`, objectId)
	if err != nil {
		return ndnerr.Wrap(ndnerr.DbError, "remove object relations failed", err)
	}
	return nil
}

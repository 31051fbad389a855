// Copyright 2026 The Vellum Authors
// SPDX-License-Identifier: Apache-2.0

package integrity

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/vellum-foundation/vellum/lib/cid"
	"github.com/vellum-foundation/vellum/lib/codec"
	"github.com/vellum-foundation/vellum/lib/identity"
	"github.com/vellum-foundation/vellum/lib/sqlitepool"
)

const chainSchema = `
CREATE TABLE IF NOT EXISTS chains (
	instance_id     TEXT PRIMARY KEY,
	document_id     TEXT NOT NULL,
	genesis_cid     TEXT NOT NULL DEFAULT '',
	head_cid        TEXT NOT NULL DEFAULT '',
	flagged         INTEGER NOT NULL DEFAULT 0,
	last_verified   TEXT NOT NULL DEFAULT '',
	actor_last_seen BLOB
);
CREATE INDEX IF NOT EXISTS chains_by_document ON chains (document_id);

CREATE TABLE IF NOT EXISTS chain_links (
	instance_id     TEXT NOT NULL REFERENCES chains (instance_id) ON DELETE CASCADE,
	sequence        INTEGER NOT NULL,
	event_cid       TEXT NOT NULL,
	predecessor_cid TEXT NOT NULL DEFAULT '',
	actor_kind      TEXT NOT NULL,
	actor_id        TEXT NOT NULL DEFAULT '',
	node            TEXT NOT NULL,
	event_type      TEXT NOT NULL,
	at              TEXT NOT NULL,
	payload         BLOB NOT NULL,
	PRIMARY KEY (instance_id, sequence)
);
`

// SQLiteChainStore persists chains in SQLite. Chains are written
// whole inside a savepoint; they are short (one per workflow
// instance), so replacing the link rows on save is cheaper than
// diffing.
type SQLiteChainStore struct {
	pool *sqlitepool.Pool
}

// PrepareConn creates the chain schema. Pass it as the pool's
// OnConnect.
func PrepareConn(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, chainSchema, nil); err != nil {
		return fmt.Errorf("creating chain schema: %w", err)
	}
	return nil
}

// NewSQLiteChainStore returns a store over an open pool. The pool
// must have been opened with PrepareConn as its OnConnect.
func NewSQLiteChainStore(pool *sqlitepool.Pool) *SQLiteChainStore {
	return &SQLiteChainStore{pool: pool}
}

func (s *SQLiteChainStore) Save(ctx context.Context, chain *Chain) (err error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)
	defer sqlitex.Save(conn)(&err)

	actorSeen, err := codec.Marshal(chain.ActorLastSeen)
	if err != nil {
		return fmt.Errorf("encoding actor timestamps: %w", err)
	}

	err = sqlitex.Execute(conn, `
		INSERT INTO chains (instance_id, document_id, genesis_cid, head_cid, flagged, last_verified, actor_last_seen)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (instance_id) DO UPDATE SET
			genesis_cid = excluded.genesis_cid,
			head_cid = excluded.head_cid,
			flagged = excluded.flagged,
			last_verified = excluded.last_verified,
			actor_last_seen = excluded.actor_last_seen`,
		&sqlitex.ExecOptions{Args: []any{
			chain.InstanceID.String(),
			chain.DocumentID.String(),
			chain.GenesisCID.String(),
			chain.HeadCID.String(),
			boolToInt(chain.Flagged),
			timeToText(chain.LastVerified),
			actorSeen,
		}})
	if err != nil {
		return fmt.Errorf("saving chain %s: %w", chain.InstanceID, err)
	}

	err = sqlitex.Execute(conn, "DELETE FROM chain_links WHERE instance_id = ?",
		&sqlitex.ExecOptions{Args: []any{chain.InstanceID.String()}})
	if err != nil {
		return fmt.Errorf("clearing links for %s: %w", chain.InstanceID, err)
	}

	for _, link := range chain.Links {
		meta := link.Integrity.Metadata
		err = sqlitex.Execute(conn, `
			INSERT INTO chain_links (instance_id, sequence, event_cid, predecessor_cid, actor_kind, actor_id, node, event_type, at, payload)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			&sqlitex.ExecOptions{Args: []any{
				chain.InstanceID.String(),
				int64(meta.SequenceNumber),
				link.Integrity.EventCID.String(),
				link.Integrity.PredecessorCID.String(),
				string(meta.Actor.Kind),
				meta.Actor.ID,
				meta.WorkflowNode,
				string(meta.EventType),
				timeToText(meta.Timestamp),
				link.Payload,
			}})
		if err != nil {
			return fmt.Errorf("saving link %d of %s: %w", meta.SequenceNumber, chain.InstanceID, err)
		}
	}
	return nil
}

func (s *SQLiteChainStore) Load(ctx context.Context, instanceID identity.WorkflowInstanceID) (*Chain, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var chain *Chain
	err = sqlitex.Execute(conn, "SELECT document_id, genesis_cid, head_cid, flagged, last_verified, actor_last_seen FROM chains WHERE instance_id = ?",
		&sqlitex.ExecOptions{
			Args: []any{instanceID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				loaded := &Chain{InstanceID: instanceID}
				if err := loaded.DocumentID.UnmarshalText([]byte(stmt.ColumnText(0))); err != nil {
					return fmt.Errorf("document ID: %w", err)
				}
				if err := parseCID(stmt.ColumnText(1), &loaded.GenesisCID); err != nil {
					return fmt.Errorf("genesis CID: %w", err)
				}
				if err := parseCID(stmt.ColumnText(2), &loaded.HeadCID); err != nil {
					return fmt.Errorf("head CID: %w", err)
				}
				loaded.Flagged = stmt.ColumnInt64(3) != 0
				lastVerified, err := textToTime(stmt.ColumnText(4))
				if err != nil {
					return fmt.Errorf("last verified: %w", err)
				}
				loaded.LastVerified = lastVerified
				if size := stmt.ColumnLen(5); size > 0 {
					raw := make([]byte, size)
					stmt.ColumnBytes(5, raw)
					if err := codec.Unmarshal(raw, &loaded.ActorLastSeen); err != nil {
						return fmt.Errorf("actor timestamps: %w", err)
					}
				}
				chain = loaded
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("loading chain %s: %w", instanceID, err)
	}
	if chain == nil {
		return nil, ErrChainNotFound
	}
	if chain.ActorLastSeen == nil {
		chain.ActorLastSeen = make(map[string]time.Time)
	}

	err = sqlitex.Execute(conn, "SELECT sequence, event_cid, predecessor_cid, actor_kind, actor_id, node, event_type, at, payload FROM chain_links WHERE instance_id = ? ORDER BY sequence",
		&sqlitex.ExecOptions{
			Args: []any{instanceID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var link Link
				meta := &link.Integrity.Metadata
				meta.SequenceNumber = uint64(stmt.ColumnInt64(0))
				if err := parseCID(stmt.ColumnText(1), &link.Integrity.EventCID); err != nil {
					return fmt.Errorf("event CID: %w", err)
				}
				if err := parseCID(stmt.ColumnText(2), &link.Integrity.PredecessorCID); err != nil {
					return fmt.Errorf("predecessor CID: %w", err)
				}
				meta.Actor = identity.ActorID{
					Kind: identity.ActorKind(stmt.ColumnText(3)),
					ID:   stmt.ColumnText(4),
				}
				meta.WorkflowNode = stmt.ColumnText(5)
				meta.EventType = EventType(stmt.ColumnText(6))
				var err error
				if meta.Timestamp, err = textToTime(stmt.ColumnText(7)); err != nil {
					return fmt.Errorf("link timestamp: %w", err)
				}
				link.Payload = make([]byte, stmt.ColumnLen(8))
				stmt.ColumnBytes(8, link.Payload)
				chain.Links = append(chain.Links, link)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("loading links for %s: %w", instanceID, err)
	}
	return chain, nil
}

func (s *SQLiteChainStore) ForDocument(ctx context.Context, documentID identity.DocumentID) ([]identity.WorkflowInstanceID, error) {
	conn, err := s.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Put(conn)

	var instances []identity.WorkflowInstanceID
	err = sqlitex.Execute(conn, "SELECT instance_id FROM chains WHERE document_id = ? ORDER BY instance_id",
		&sqlitex.ExecOptions{
			Args: []any{documentID.String()},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var id identity.WorkflowInstanceID
				if err := id.UnmarshalText([]byte(stmt.ColumnText(0))); err != nil {
					return err
				}
				instances = append(instances, id)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("listing chains for document %s: %w", documentID, err)
	}
	return instances, nil
}

func parseCID(text string, out *cid.CID) error {
	if text == "" {
		*out = cid.CID{}
		return nil
	}
	parsed, err := cid.Parse(text)
	if err != nil {
		return err
	}
	*out = parsed
	return nil
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

func timeToText(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func textToTime(text string) (time.Time, error) {
	if text == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339Nano, text)
}

package activerow

import (
	"context"
	"fmt"
	"log"

	"github.com/activerow/activerow/internal/core"
)

// Transactional runs fn inside a database transaction. The transaction is
// committed when fn returns nil and rolled back when it returns an error or
// panics; a panic is re-raised after the rollback.
func (s *Session) Transactional(ctx context.Context, fn func(tx core.Transaction) error) error {
	tx, err := s.dialect.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		if r := recover(); r != nil {
			if err := tx.Rollback(); err != nil {
				log.Printf("[SESSION] WARNING: Rollback after panic failed: %v", err)
			}
			panic(r)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("rollback failed: %v (after: %w)", rbErr, err)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

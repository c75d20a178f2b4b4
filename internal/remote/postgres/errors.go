package postgres

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	pq "github.com/lib/pq"

	"github.com/julianstephens/habitsync/internal/remote"
)

// classify maps a database error onto the remote error taxonomy. Integrity
// and data errors are rejections; connection failures are unavailability.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, remote.ErrNotFound)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%s: %w", op, err)
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "22", "23", "42":
			// data exception, integrity constraint violation, syntax/access rule
			return fmt.Errorf("%s: %w: %s", op, remote.ErrRejected, pqErr.Message)
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return fmt.Errorf("%s: %w: %s", op, remote.ErrUnavailable, pqErr.Message)
		}
		return fmt.Errorf("%s: %w", op, err)
	}

	var netErr net.Error
	if errors.Is(err, driver.ErrBadConn) || errors.As(err, &netErr) {
		return fmt.Errorf("%s: %w: %v", op, remote.ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// Package palletctl implements the operator commands of the palletctl binary.
package palletctl

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/dmitrijs2005/palletkeeper/internal/common"
	"github.com/dmitrijs2005/palletkeeper/internal/server/models"
)

var ErrPasswordMismatch = errors.New("passwords do not match")

// Bootstrapper creates the first administrator.
type Bootstrapper interface {
	BootstrapAdmin(ctx context.Context, username, email, password string) (*models.Profile, error)
}

// Sweeper deactivates expired sessions.
type Sweeper interface {
	Sweep(ctx context.Context) (int64, error)
}

// Bootstrap prompts for the first admin's details and creates the account.
// It fails with common.ErrConflict once any admin exists.
func Bootstrap(ctx context.Context, b Bootstrapper, in *bufio.Reader, out io.Writer) error {
	username, err := GetSimpleText(in, "Admin username", out)
	if err != nil {
		return fmt.Errorf("read username: %w", err)
	}
	email, err := GetSimpleText(in, "Admin email", out)
	if err != nil {
		return fmt.Errorf("read email: %w", err)
	}

	pw, err := GetPassword("Password", out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(pw)

	confirm, err := GetPassword("Repeat password", out)
	if err != nil {
		return fmt.Errorf("read password: %w", err)
	}
	defer common.WipeByteArray(confirm)

	if !bytes.Equal(pw, confirm) {
		return ErrPasswordMismatch
	}

	p, err := b.BootstrapAdmin(ctx, username, email, string(pw))
	if err != nil {
		if errors.Is(err, common.ErrConflict) {
			return fmt.Errorf("an administrator already exists or the name is taken: %w", err)
		}
		return err
	}

	fmt.Fprintf(out, "Created admin %q (id %d)\n", p.Username, p.ID)
	return nil
}

// SweepSessions runs one session sweep and reports how many were closed.
func SweepSessions(ctx context.Context, s Sweeper, out io.Writer) error {
	n, err := s.Sweep(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Deactivated %d expired session(s)\n", n)
	return nil
}

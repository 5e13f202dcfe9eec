package fs

import (
	"errors"
	"os"
	"syscall"

	"github.com/aretw0/productbaker/pkg/core"
)

// classifyFS maps filesystem failures to storage reasons.
func classifyFS(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, os.ErrPermission):
		return core.NewError("", "", core.ReasonAccessDenied, err)
	case errors.Is(err, syscall.ENOSPC):
		return core.NewError("", "", core.ReasonQuotaExceeded, err)
	}
	return err
}

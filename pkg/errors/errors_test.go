package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	pkgerrors "github.com/agentstation/catalogsync/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	err := pkgerrors.New("test error")
	assert.NotNil(t, err)
	assert.Equal(t, "test error", err.Error())
}

func TestNotFoundError(t *testing.T) {
	t.Run("basic error", func(t *testing.T) {
		err := &pkgerrors.NotFoundError{
			Resource: "message",
			ID:       "OrderPlaced",
		}
		assert.Equal(t, "message with ID OrderPlaced not found", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrNotFound))
	})

	t.Run("with version", func(t *testing.T) {
		err := pkgerrors.NewVersionNotFoundError("service", "Orders", "2.0.0")
		assert.Equal(t, "service with ID Orders at version 2.0.0 not found", err.Error())
		assert.True(t, pkgerrors.IsNotFound(err))
	})

	t.Run("wrapped error", func(t *testing.T) {
		base := pkgerrors.NewNotFoundError("domain", "Sales")
		wrapped := fmt.Errorf("fetch current: %w", base)
		assert.True(t, pkgerrors.IsNotFound(wrapped))
	})
}

func TestConflictError(t *testing.T) {
	err := pkgerrors.NewConflictError("message", "OrderPlaced", "1", "2")
	assert.Contains(t, err.Error(), "OrderPlaced")
	assert.Contains(t, err.Error(), `current "1"`)
	assert.Contains(t, err.Error(), "refusing to overwrite")
	assert.True(t, pkgerrors.IsConflict(err))
	assert.False(t, pkgerrors.IsNotFound(err))

	err.Message = "archive slot occupied"
	assert.Contains(t, err.Error(), "archive slot occupied")
}

func TestAmbiguousVersionOrderError(t *testing.T) {
	err := pkgerrors.NewAmbiguousVersionOrderError("OrderPlaced", []string{"alpha", "beta"}, "")
	assert.Equal(t, "cannot order versions [alpha beta] of OrderPlaced", err.Error())
	assert.True(t, pkgerrors.IsAmbiguousVersionOrder(err))

	err = pkgerrors.NewAmbiguousVersionOrderError("X", []string{"1", "01"}, "equal under numeric order")
	assert.Contains(t, err.Error(), "equal under numeric order")
}

func TestPartialWriteError(t *testing.T) {
	base := errors.New("disk full")
	err := pkgerrors.NewPartialWriteError("message", "OrderPlaced", "1", base)
	assert.Contains(t, err.Error(), "archived 1")
	assert.True(t, pkgerrors.IsPartialWrite(err))
	assert.Equal(t, base, errors.Unwrap(err))
}

func TestEnrichmentError(t *testing.T) {
	err := pkgerrors.NewEnrichmentError("manifest", "OrderPlaced", "schema", errors.New("no such file"))
	assert.Contains(t, err.Error(), "schema")
	assert.Contains(t, err.Error(), "OrderPlaced")
	assert.True(t, pkgerrors.IsEnrichmentUnavailable(err))

	err = pkgerrors.NewEnrichmentError("manifest", "", "tags", errors.New("denied"))
	assert.NotContains(t, err.Error(), " for ")
}

func TestValidationError(t *testing.T) {
	t.Run("with field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{
			Field:   "id",
			Message: "cannot be empty",
		}
		assert.Equal(t, "validation failed for field id: cannot be empty", err.Error())
		assert.True(t, errors.Is(err, pkgerrors.ErrInvalidInput))
	})

	t.Run("without field", func(t *testing.T) {
		err := &pkgerrors.ValidationError{Message: "invalid configuration"}
		assert.Equal(t, "validation failed: invalid configuration", err.Error())
		assert.True(t, pkgerrors.IsValidationError(err))
	})

	t.Run("wrap helper", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapValidation("version", nil))
		err := pkgerrors.WrapValidation("version", errors.New("contains a path separator"))
		assert.True(t, pkgerrors.IsValidationError(err))
	})
}

func TestIOError(t *testing.T) {
	t.Run("unwrap", func(t *testing.T) {
		baseErr := errors.New("disk full")
		err := pkgerrors.NewIOError("write", "/catalog/events/A/index.md", baseErr)
		assert.Equal(t, baseErr, err.Unwrap())
		assert.Contains(t, err.Error(), "write")
	})

	t.Run("wrap helper", func(t *testing.T) {
		assert.Nil(t, pkgerrors.WrapIO("rename", "/x", nil))
		err := pkgerrors.WrapIO("rename", "/x", errors.New("cross-device link"))
		ioErr, ok := err.(*pkgerrors.IOError)
		require.True(t, ok)
		assert.Equal(t, "rename", ioErr.Operation)
		assert.Equal(t, "/x", ioErr.Path)
	})
}

func TestParseError(t *testing.T) {
	err := pkgerrors.WrapParse("frontmatter", "index.md", errors.New("missing delimiter"))
	var parseErr *pkgerrors.ParseError
	require.ErrorAs(t, err, &parseErr)
	assert.Equal(t, "parse error in frontmatter file index.md: missing delimiter", err.Error())
}

func TestSyncError(t *testing.T) {
	base := pkgerrors.NewIOError("read", "catalog.yaml", errors.New("permission denied"))
	err := pkgerrors.NewSyncError("manifest", base)
	assert.Contains(t, err.Error(), "source manifest")
	assert.Equal(t, "io", pkgerrors.Reason(err))
}

func TestEntityError(t *testing.T) {
	err := pkgerrors.WrapEntity("message", "OrderPlaced", "2",
		pkgerrors.NewConflictError("message", "OrderPlaced", "1", "2"))
	var entErr *pkgerrors.EntityError
	require.ErrorAs(t, err, &entErr)
	assert.Equal(t, "conflict", entErr.Reason())
	assert.True(t, pkgerrors.IsConflict(err))
	assert.Nil(t, pkgerrors.WrapEntity("message", "x", "1", nil))
}

func TestReason(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"not found", pkgerrors.NewNotFoundError("domain", "A"), "not_found"},
		{"conflict", pkgerrors.NewConflictError("domain", "A", "1", "2"), "conflict"},
		{"ambiguous", pkgerrors.NewAmbiguousVersionOrderError("A", nil, ""), "ambiguous_version_order"},
		{"partial write beats io", pkgerrors.NewPartialWriteError("domain", "A", "1", pkgerrors.NewIOError("write", "p", errors.New("x"))), "partial_write"},
		{"validation", pkgerrors.NewValidationError("id", "", "empty"), "invalid"},
		{"io", pkgerrors.NewIOError("read", "p", errors.New("x")), "io"},
		{"parse", pkgerrors.NewParseError("yaml", "f", "bad", nil), "parse"},
		{"canceled", fmt.Errorf("%w: %w", pkgerrors.ErrCanceled, context.Canceled), "canceled"},
		{"other", errors.New("boom"), "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, pkgerrors.Reason(tt.err))
		})
	}
}

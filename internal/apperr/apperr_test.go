package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	base := errors.New("boom")

	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"plain error", base, KindInternal},
		{"validation", Validation("decode form", base), KindValidation},
		{"database", Database("insert subscriber", base), KindDatabase},
		{"not found", NotFound("get subscriber", base), KindNotFound},
		{"internal", Internal("insert subscriber", base), KindInternal},
		{"wrapped", fmt.Errorf("handler: %w", Database("insert subscriber", base)), KindDatabase},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, KindOf(tt.err))
		})
	}
}

func TestError_UnwrapAndMessage(t *testing.T) {
	t.Parallel()

	base := errors.New("connection refused")
	err := Database("insert subscriber", base)

	assert.ErrorIs(t, err, base)
	assert.Equal(t, "insert subscriber: database error: connection refused", err.Error())
	assert.Equal(t, "internal error: connection refused", (&Error{Err: base}).Error())
}

func TestIs(t *testing.T) {
	t.Parallel()

	assert.False(t, Is(nil, KindInternal))
	assert.True(t, Is(Validation("decode form", errors.New("missing email")), KindValidation))
	assert.False(t, Is(Validation("decode form", errors.New("missing email")), KindDatabase))
}

func TestKind_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "validation", KindValidation.String())
	assert.Equal(t, "database", KindDatabase.String())
	assert.Equal(t, "not_found", KindNotFound.String())
	assert.Equal(t, "internal", KindInternal.String())
	assert.Equal(t, "internal", Kind(42).String())
}

package errors

import (
	"context"
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsErrorType_WalksWrappedChain(t *testing.T) {
	err := fmt.Errorf("create base: %w", NewCatalogBaseNotFound("ada", "thesis"))

	assert.True(t, IsErrorType(err, ErrorTypeCatalog))
	assert.False(t, IsErrorType(err, ErrorTypeGraph))

	var notFound *ErrCatalogBaseNotFound
	assert.True(t, stderrors.As(err, &notFound))
	assert.Equal(t, "thesis", notFound.Base)
}

func TestBaseError_Error(t *testing.T) {
	cause := stderrors.New("connection reset")
	err := NewGraphQueryFailed("get base articles", cause)

	assert.Equal(t, "[graph] query failed: get base articles: connection reset", err.Error())
	assert.ErrorIs(t, err, cause)
}

func TestImportBatchFailed(t *testing.T) {
	err := NewImportBatchFailed("citation", 3, 2, stderrors.New("deadlock"))

	assert.True(t, IsErrorType(err, ErrorTypeGraph))
	assert.Contains(t, err.Error(), "citation batch 3 failed (2 batches committed)")
}

func TestWrapContext(t *testing.T) {
	err := WrapContext("import", fmt.Errorf("run: %w", context.Canceled))
	assert.True(t, IsErrorType(err, ErrorTypeContext))

	plain := stderrors.New("boom")
	assert.Same(t, plain, WrapContext("import", plain))
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(NewGraphConnectionFailed("bolt://localhost:7687", stderrors.New("refused"))))
	assert.False(t, IsRetryable(NewGraphQueryFailed("x", stderrors.New("syntax"))))
	assert.False(t, IsRetryable(NewContextCancelled("x", context.DeadlineExceeded)))
	assert.False(t, IsRetryable(nil))
}

func TestPublicMessage(t *testing.T) {
	err := fmt.Errorf("handler: %w", NewCatalogBaseNotFound("ada", "thesis"))
	assert.Equal(t, "catalog base not found: ada/thesis", PublicMessage(err))

	assert.Equal(t, "plain", PublicMessage(stderrors.New("plain")))
	assert.Equal(t, "", PublicMessage(nil))
}

package errx

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapProviderClassifies(t *testing.T) {
	assert.NoError(t, WrapProvider(nil))

	err := WrapProvider(fmt.Errorf("generate: %w", context.DeadlineExceeded))
	assert.True(t, IsKind(err, KindRequestTimeout))
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	boom := errors.New("401 unauthorized")
	err = WrapProvider(boom)
	assert.True(t, IsKind(err, KindProviderUnavailable))
	assert.ErrorIs(t, err, boom)

	var appErr *AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
}

func TestWrapProviderKeepsKind(t *testing.T) {
	parse := AnswerParse(errors.New("bad json"))
	assert.Same(t, parse, WrapProvider(parse))

	wrapped := fmt.Errorf("stage answer: %w", Timeout(context.DeadlineExceeded))
	assert.Equal(t, KindRequestTimeout, KindOf(WrapProvider(wrapped)))
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("plain")))
	assert.Equal(t, KindInternal, KindOf(New(nil, http.StatusInternalServerError, SystemErrorMessage)))
	assert.Equal(t, KindPreprocessParseFailure, KindOf(fmt.Errorf("x: %w", PreprocessParse(nil))))
	assert.False(t, IsKind(nil, KindInternal))
}

func TestAppErrorMessage(t *testing.T) {
	assert.Equal(t, AnswerParseMessage, AnswerParse(nil).Error())
	assert.Equal(t, TimeoutMessage+": context deadline exceeded", Timeout(context.DeadlineExceeded).Error())
}

func TestWrapRedis(t *testing.T) {
	assert.NoError(t, WrapRedis(nil))

	var appErr *AppError
	require.ErrorAs(t, WrapRedis(redis.Nil), &appErr)
	assert.Equal(t, http.StatusNotFound, appErr.Status)
	assert.Equal(t, KindRedis, appErr.Kind)

	require.ErrorAs(t, WrapRedis(errors.New("conn refused")), &appErr)
	assert.Equal(t, http.StatusBadGateway, appErr.Status)
	assert.Equal(t, RedisErrorMessage, appErr.Message)
}

package service

import (
	"context"
	"io"
	"testing"

	kerrors "github.com/go-kratos/kratos/v2/errors"
	"github.com/go-kratos/kratos/v2/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidationService() *AdminAreaService {
	return NewAdminAreaService(log.NewStdLogger(io.Discard), nil, nil, nil)
}

func TestNormalizeISO3(t *testing.T) {
	got, err := normalizeISO3(" esp ")
	require.NoError(t, err)
	assert.Equal(t, "ESP", got)

	for _, bad := range []string{"", "ES", "SPAIN"} {
		_, err := normalizeISO3(bad)
		require.Error(t, err, bad)
		assert.Equal(t, int32(400), kerrors.FromError(err).Code)
	}
}

func TestResolvePoint_RejectsBadInput(t *testing.T) {
	s := newValidationService()

	_, err := s.ResolvePoint(context.Background(), 40.0, -3.7, "E", "")
	assert.Equal(t, int32(400), kerrors.FromError(err).Code)

	_, err = s.ResolvePoint(context.Background(), 91.0, 0, "ESP", "")
	assert.Equal(t, int32(400), kerrors.FromError(err).Code)

	_, err = s.ResolvePoint(context.Background(), 0, -181.0, "ESP", "")
	assert.Equal(t, int32(400), kerrors.FromError(err).Code)
}

func TestResolveAddress_RejectsEmptyAddress(t *testing.T) {
	s := newValidationService()
	_, err := s.ResolveAddress(context.Background(), "   ", "", "ESP", "")
	assert.Equal(t, int32(400), kerrors.FromError(err).Code)
}

func TestGeometry_RejectsNonPositiveID(t *testing.T) {
	s := newValidationService()
	_, err := s.Geometry(context.Background(), 0, nil, nil)
	assert.Equal(t, int32(400), kerrors.FromError(err).Code)
}

func TestStatus_WithoutDatastore(t *testing.T) {
	s := newValidationService()
	st, err := s.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "unknown", st.DBStatus)
}

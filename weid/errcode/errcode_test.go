package errcode

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCodeKind(t *testing.T) {
	tests := []struct {
		code Code
		kind Kind
	}{
		{Success, KindSuccess},
		{WeIdInvalid, KindInputInvalid},
		{IllegalInput, KindInputInvalid},
		{WeIdAlreadyExist, KindAlreadyExists},
		{WeIdDoesNotExist, KindDoesNotExist},
		{WeIdHasBeenDeactivated, KindDeactivated},
		{AuthenticationMethodIDExists, KindDuplicateAuthenticationID},
		{AuthenticationPublicKeyMultibaseExists, KindDuplicateAuthenticationKey},
		{ServiceMethodIDExists, KindDuplicateServiceID},
		{WeIdPrivateKeyIllegal, KindPrivateKeyIllegal},
		{WeIdPublicKeyAndPrivateKeyNotMatched, KindKeypairMismatch},
		{WeIdDocumentConflict, KindConflict},
		{UnknownError, KindUnderlyingLedgerFailure},
		{Code(42), KindUnderlyingLedgerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.code.Message(), func(t *testing.T) {
			assert.Equal(t, tt.kind, tt.code.Kind())
		})
	}
}

func TestFromError(t *testing.T) {
	t.Run("nil is success", func(t *testing.T) {
		require.Equal(t, Success, FromError(nil))
	})

	t.Run("wrapped code survives", func(t *testing.T) {
		err := fmt.Errorf("update weid: %w", WeIdPrivateKeyIllegal)
		require.Equal(t, WeIdPrivateKeyIllegal, FromError(err))
		require.True(t, errors.Is(err, WeIdPrivateKeyIllegal))
	})

	t.Run("foreign error is unknown", func(t *testing.T) {
		require.Equal(t, UnknownError, FromError(errors.New("rpc down")))
	})
}

func TestCodeError(t *testing.T) {
	require.Equal(t, "100104: the weid does not exist", WeIdDoesNotExist.Error())
	require.Equal(t, "unknown error code 7", Code(7).Message())
	require.Equal(t, "DuplicateServiceId", KindDuplicateServiceID.String())
}

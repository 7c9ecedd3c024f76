package status

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestErrorKindMatching(t *testing.T) {
	err := Wrap(KindNotSent, fmt.Errorf("connection reset"))
	require.True(t, errors.Is(err, NewError(KindNotSent)))
	require.False(t, errors.Is(err, NewError(KindUnknown)))

	wrapped := fmt.Errorf("outer: %w", err)
	require.True(t, errors.Is(wrapped, NewError(KindNotSent)))
	require.Equal(t, KindNotSent, KindOf(wrapped))
}

func TestKindOfPlainError(t *testing.T) {
	require.Equal(t, KindUnknown, KindOf(fmt.Errorf("nope")))
}

func TestCodesStable(t *testing.T) {
	require.Equal(t, 403, KindLoginFailed.Code())
	require.Equal(t, 445, KindAccountAlreadyExists.Code())
	require.Equal(t, 535, KindNotSent.Code())
	require.Equal(t, 536, KindConfiguration.Code())
	require.Equal(t, 520, KindUnknown.Code())
}

func TestClassify(t *testing.T) {
	m := ErrorMap{
		KindAccountAlreadyExists: {"ALREADY_PROCESSED", "ACCOUNT_ALREADY_EXISTS"},
		KindCardNotRegistered:    {"NO_SUCH_CARD"},
	}

	require.Equal(t, KindAccountAlreadyExists, m.Classify("ALREADY_PROCESSED"))
	require.Equal(t, KindAccountAlreadyExists, m.Classify("ACCOUNT_ALREADY_EXISTS"))
	require.Equal(t, KindCardNotRegistered, m.Classify("NO_SUCH_CARD"))
	require.Equal(t, KindUnknown, m.Classify("SOMETHING_NEW"))

	err := m.ClassifyError("ALREADY_PROCESSED")
	require.True(t, errors.Is(err, NewError(KindAccountAlreadyExists)))
}

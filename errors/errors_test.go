package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	req := require.New(t)

	req.Equal(InvalidTarget, KindOf(Wrap(ErrInvalidTarget, "both set")))
	req.Equal(StorageFailure, KindOf(fmt.Errorf("%w: %v", ErrStorageFailure, fmt.Errorf("disk full"))))
	req.Equal(NotAMember, KindOf(Wrap(ErrNotAMember, "call room absent")))
	req.Equal(NotAMember, KindOf(ErrMessageNotFound))
	req.Equal(ConnectionLost, KindOf(ErrConnectionLost))
	req.Equal(MalformedFrame, KindOf(ErrMalformedFrame))
	req.Equal(ParticipantConflict, KindOf(ErrParticipantConflict))
	req.Equal(Internal, KindOf(fmt.Errorf("boom")))
	req.Empty(KindOf(nil))
}

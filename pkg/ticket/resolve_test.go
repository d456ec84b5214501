package ticket

import (
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frag(d string) Fragment { return Fragment{Digits: d} }

func TestResolveOrderIndependent(t *testing.T) {
	front, back := frontFragment(t), backFragment()

	ab, err := Resolve(frag(front), frag(back))
	require.NoError(t, err)
	ba, err := Resolve(frag(back), frag(front))
	require.NoError(t, err)

	require.True(t, ab.Accepted())
	require.True(t, ba.Accepted())
	assert.Equal(t, front+back, ab.Code)
	assert.Equal(t, ab.Code, ba.Code)
	assert.False(t, ab.Swapped)
	assert.True(t, ba.Swapped)
	assert.Equal(t, RoleFront, ab.First.Role)
	assert.Equal(t, RoleBack, ab.Second.Role)

	out, err := Decode(ab.Code)
	require.NoError(t, err)
	require.Len(t, out.Bets, 1)
	assert.Equal(t, []int{7}, out.Bets[0].Selection.Runners)
}

func TestResolveRejectsTwoFronts(t *testing.T) {
	other := buildCode(t, "10500024020312"+"0", "10300005")[:FragmentLen]
	res, err := Resolve(frag(frontFragment(t)), frag(other))
	require.NoError(t, err)
	assert.False(t, res.Accepted())
	assert.Equal(t, ReasonSameRole, res.Reason)
	assert.Empty(t, res.Code)
}

func TestResolveRejectsDuplicate(t *testing.T) {
	front, back := frontFragment(t), backFragment()

	res, err := Resolve(frag(front), frag(front))
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicate, res.Reason)

	res, err = Resolve(frag(front), frag(back), back)
	require.NoError(t, err)
	assert.Equal(t, ReasonDuplicate, res.Reason)
}

func TestResolveUnknownRolesByScore(t *testing.T) {
	// race 00 keeps the header below the front cutoff
	a := buildCode(t, "00500024020300"+"0", "10700012")[:FragmentLen]
	b := strings.Repeat("0", FragmentLen)

	ab, err := Resolve(frag(a), frag(b))
	require.NoError(t, err)
	ba, err := Resolve(frag(b), frag(a))
	require.NoError(t, err)

	assert.Equal(t, RoleUnknown, ab.First.Role)
	assert.Equal(t, RoleUnknown, ab.Second.Role)
	require.True(t, ab.Accepted())
	require.True(t, ba.Accepted())
	assert.Equal(t, a+b, ab.Code)
	assert.Equal(t, a+b, ba.Code)
	assert.Equal(t, 1, ab.Candidate.Bets)
}

func TestResolveLowPlausibility(t *testing.T) {
	res, err := Resolve(frag(strings.Repeat("9", FragmentLen)), frag(strings.Repeat("8", FragmentLen)))
	require.NoError(t, err)
	assert.Equal(t, ReasonLowPlausibility, res.Reason)
	assert.Empty(t, res.Code)
	assert.Less(t, res.Candidate.Score, MinCombinedScore)
}

func TestResolveMalformed(t *testing.T) {
	_, err := Resolve(frag("123"), frag(backFragment()))
	assert.True(t, eris.Is(err, ErrMalformed))
	_, err = Resolve(frag(backFragment()), frag(strings.Repeat("a", FragmentLen)))
	assert.True(t, eris.Is(err, ErrMalformed))
}

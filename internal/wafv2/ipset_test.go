package wafv2

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/models"
)

type fakeWAF struct {
	pages     [][]types.IPSetSummary
	addresses []string
	token     string
	version   types.IPAddressVersion
	updateErr error
	lastScope types.Scope
	updated   *wafv2.UpdateIPSetInput
}

func (f *fakeWAF) ListIPSets(ctx context.Context, in *wafv2.ListIPSetsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListIPSetsOutput, error) {
	f.lastScope = in.Scope
	page := 0
	if in.NextMarker != nil {
		page = int(aws.ToString(in.NextMarker)[0] - '0')
	}
	out := &wafv2.ListIPSetsOutput{}
	if page < len(f.pages) {
		out.IPSets = f.pages[page]
		out.NextMarker = aws.String(string(rune('0' + page + 1)))
	}
	return out, nil
}

func (f *fakeWAF) GetIPSet(ctx context.Context, in *wafv2.GetIPSetInput, optFns ...func(*wafv2.Options)) (*wafv2.GetIPSetOutput, error) {
	return &wafv2.GetIPSetOutput{
		IPSet: &types.IPSet{
			Id:               in.Id,
			Name:             in.Name,
			Description:      aws.String("blacklist"),
			Addresses:        f.addresses,
			IPAddressVersion: f.version,
		},
		LockToken: aws.String(f.token),
	}, nil
}

func (f *fakeWAF) UpdateIPSet(ctx context.Context, in *wafv2.UpdateIPSetInput, optFns ...func(*wafv2.Options)) (*wafv2.UpdateIPSetOutput, error) {
	f.updated = in
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return &wafv2.UpdateIPSetOutput{NextLockToken: aws.String("next")}, nil
}

func TestListSets_FollowsMarker(t *testing.T) {
	fake := &fakeWAF{pages: [][]types.IPSetSummary{
		{{Id: aws.String("1"), Name: aws.String("a")}},
		{{Id: aws.String("2"), Name: aws.String("AWSWAFBlacklistSetIPV4")}},
	}}

	sets, err := NewWithClient(fake).ListSets(context.Background(), "REGIONAL")
	require.NoError(t, err)
	assert.Equal(t, []models.IPSetSummary{{ID: "1", Name: "a"}, {ID: "2", Name: "AWSWAFBlacklistSetIPV4"}}, sets)
	assert.Equal(t, types.ScopeRegional, fake.lastScope)
}

func TestGetSet(t *testing.T) {
	fake := &fakeWAF{addresses: []string{"10.0.0.1/32"}, token: "tok-1", version: types.IPAddressVersionIpv4}

	snap, err := NewWithClient(fake).GetSet(context.Background(), "REGIONAL", models.IPSetSummary{ID: "2", Name: "bl"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", snap.LockToken)
	assert.Equal(t, []string{"10.0.0.1/32"}, snap.Addresses)
	assert.Equal(t, "bl", snap.Name)
	assert.Equal(t, models.IPAddressVersionIPv4, snap.AddressVersion)
}

func TestUpdateSet_UsesLockToken(t *testing.T) {
	fake := &fakeWAF{}
	snap := models.IPSetSnapshot{ID: "2", Name: "bl", Description: "blacklist", LockToken: "tok-1"}

	err := NewWithClient(fake).UpdateSet(context.Background(), "REGIONAL", snap, []string{"9.9.9.9/32"})
	require.NoError(t, err)
	assert.Equal(t, "tok-1", aws.ToString(fake.updated.LockToken))
	assert.Equal(t, []string{"9.9.9.9/32"}, fake.updated.Addresses)
	assert.Equal(t, "blacklist", aws.ToString(fake.updated.Description))
}

func TestUpdateSet_MapsOptimisticLock(t *testing.T) {
	fake := &fakeWAF{updateErr: &types.WAFOptimisticLockException{Message: aws.String("stale")}}

	err := NewWithClient(fake).UpdateSet(context.Background(), "REGIONAL", models.IPSetSnapshot{Name: "bl"}, nil)
	assert.ErrorIs(t, err, blacklist.ErrConflict)

	fake.updateErr = errors.New("access denied")
	err = NewWithClient(fake).UpdateSet(context.Background(), "REGIONAL", models.IPSetSnapshot{Name: "bl"}, nil)
	assert.Error(t, err)
	assert.NotErrorIs(t, err, blacklist.ErrConflict)
}

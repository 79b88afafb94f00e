// Package wafv2 adapts the AWS WAFv2 IP set API to the blacklist manager.
package wafv2

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/wafv2"
	"github.com/aws/aws-sdk-go-v2/service/wafv2/types"

	"github.com/Wikid82/wafwatch/internal/blacklist"
	"github.com/Wikid82/wafwatch/internal/models"
)

// API is the subset of the WAFv2 client used by IPSetStore.
type API interface {
	ListIPSets(ctx context.Context, params *wafv2.ListIPSetsInput, optFns ...func(*wafv2.Options)) (*wafv2.ListIPSetsOutput, error)
	GetIPSet(ctx context.Context, params *wafv2.GetIPSetInput, optFns ...func(*wafv2.Options)) (*wafv2.GetIPSetOutput, error)
	UpdateIPSet(ctx context.Context, params *wafv2.UpdateIPSetInput, optFns ...func(*wafv2.Options)) (*wafv2.UpdateIPSetOutput, error)
}

type IPSetStore struct {
	client API
}

func New(cfg aws.Config) *IPSetStore {
	return NewWithClient(wafv2.NewFromConfig(cfg))
}

func NewWithClient(client API) *IPSetStore {
	return &IPSetStore{client: client}
}

func (s *IPSetStore) ListSets(ctx context.Context, scope string) ([]models.IPSetSummary, error) {
	var out []models.IPSetSummary
	var marker *string
	for {
		page, err := s.client.ListIPSets(ctx, &wafv2.ListIPSetsInput{
			Scope:      types.Scope(scope),
			NextMarker: marker,
		})
		if err != nil {
			return nil, fmt.Errorf("list ip sets: %w", err)
		}
		for _, set := range page.IPSets {
			out = append(out, models.IPSetSummary{ID: aws.ToString(set.Id), Name: aws.ToString(set.Name)})
		}
		if len(page.IPSets) == 0 || aws.ToString(page.NextMarker) == "" {
			return out, nil
		}
		marker = page.NextMarker
	}
}

func (s *IPSetStore) GetSet(ctx context.Context, scope string, set models.IPSetSummary) (models.IPSetSnapshot, error) {
	res, err := s.client.GetIPSet(ctx, &wafv2.GetIPSetInput{
		Id:    aws.String(set.ID),
		Name:  aws.String(set.Name),
		Scope: types.Scope(scope),
	})
	if err != nil {
		return models.IPSetSnapshot{}, fmt.Errorf("get ip set %s: %w", set.Name, err)
	}
	if res.IPSet == nil {
		return models.IPSetSnapshot{}, fmt.Errorf("get ip set %s: empty response", set.Name)
	}
	return models.IPSetSnapshot{
		ID:             aws.ToString(res.IPSet.Id),
		Name:           aws.ToString(res.IPSet.Name),
		Description:    aws.ToString(res.IPSet.Description),
		Addresses:      append([]string{}, res.IPSet.Addresses...),
		AddressVersion: string(res.IPSet.IPAddressVersion),
		LockToken:      aws.ToString(res.LockToken),
	}, nil
}

// UpdateSet writes addresses with the lock token of snapshot. A stale token
// is reported as blacklist.ErrConflict.
func (s *IPSetStore) UpdateSet(ctx context.Context, scope string, snapshot models.IPSetSnapshot, addresses []string) error {
	in := &wafv2.UpdateIPSetInput{
		Id:        aws.String(snapshot.ID),
		Name:      aws.String(snapshot.Name),
		Scope:     types.Scope(scope),
		LockToken: aws.String(snapshot.LockToken),
		Addresses: addresses,
	}
	if snapshot.Description != "" {
		in.Description = aws.String(snapshot.Description)
	}
	_, err := s.client.UpdateIPSet(ctx, in)
	if err == nil {
		return nil
	}
	var lockErr *types.WAFOptimisticLockException
	if errors.As(err, &lockErr) {
		return fmt.Errorf("update ip set %s: %w: %v", snapshot.Name, blacklist.ErrConflict, err)
	}
	return fmt.Errorf("update ip set %s: %w", snapshot.Name, err)
}

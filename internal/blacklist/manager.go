// Package blacklist keeps the local blacklist ledger and the remote WAF IP set in step.
package blacklist

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Wikid82/wafwatch/internal/logger"
	"github.com/Wikid82/wafwatch/internal/models"
	"github.com/Wikid82/wafwatch/internal/util"
)

const (
	DefaultTTL                = 24 * time.Hour
	DefaultMaxConflictRetries = 2
	DefaultScope              = "REGIONAL"
	DefaultIPSetName          = "AWSWAFBlacklistSetIPV4"
)

var (
	// ErrConflict is returned by an IPSetStore when the lock token is stale.
	ErrConflict = errors.New("ip set was modified concurrently")
	// ErrNoIPSets means the scope holds no IP sets at all.
	ErrNoIPSets = errors.New("no ip sets available")
	// ErrIPSetNotFound means no IP set carries the configured name.
	ErrIPSetNotFound = errors.New("ip set not found")
)

// IPSetStore is the remote, authoritative list of blocked addresses.
type IPSetStore interface {
	ListSets(ctx context.Context, scope string) ([]models.IPSetSummary, error)
	GetSet(ctx context.Context, scope string, set models.IPSetSummary) (models.IPSetSnapshot, error)
	// UpdateSet replaces the addresses of snapshot using its lock token.
	// It returns an error wrapping ErrConflict when the token is stale.
	UpdateSet(ctx context.Context, scope string, snapshot models.IPSetSnapshot, addresses []string) error
}

// Repository persists the blacklist ledger. Load returns an empty ledger
// when nothing was saved yet.
type Repository interface {
	Load(ctx context.Context) ([]models.BlacklistEntry, error)
	Save(ctx context.Context, entries []models.BlacklistEntry) error
}

type Options struct {
	IPSetName          string
	Scope              string
	TTL                time.Duration
	MaxConflictRetries int
}

type Manager struct {
	store IPSetStore
	repo  Repository
	opts  Options
	log   *logrus.Entry
}

// SyncResult describes the outcome of one Sync.
type SyncResult struct {
	Expired   []string
	Adopted   []string
	Dropped   []string
	Added     []string
	Addresses []string
	Ledger    []models.BlacklistEntry
	Attempts  int
	Conflicts int
	Committed bool
}

func NewManager(store IPSetStore, repo Repository, opts Options, log *logrus.Logger) *Manager {
	if opts.IPSetName == "" {
		opts.IPSetName = DefaultIPSetName
	}
	if opts.Scope == "" {
		opts.Scope = DefaultScope
	}
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.MaxConflictRetries < 0 {
		opts.MaxConflictRetries = 0
	}
	return &Manager{store: store, repo: repo, opts: opts, log: logger.For(log, "blacklist")}
}

// Sync expires stale entries, reconciles the ledger with the remote set, adds
// the new candidates and commits the result. The ledger is only saved after
// the remote set was written successfully or needed no change.
//
// The remote set is authoritative: a ledger entry missing remotely is dropped,
// so a candidate for that IP is added again with a fresh StartDate and its TTL
// restarts. Candidates outside the address family of the set are skipped.
func (m *Manager) Sync(ctx context.Context, candidates []models.BlacklistEntry, now time.Time) (*SyncResult, error) {
	ledger, err := m.repo.Load(ctx)
	if err != nil {
		m.log.WithError(err).Warn("failed to load blacklist ledger, starting from an empty one")
		ledger = nil
	}

	res := &SyncResult{}
	var p plan
	for {
		snapshot, err := m.fetch(ctx)
		if err != nil {
			return res, err
		}

		p = reconcile(ledger, snapshot.Addresses, candidates, snapshot.AddressVersion, now, m.opts.TTL)
		res.Expired, res.Adopted, res.Dropped, res.Added = p.expired, p.adopted, p.dropped, p.added
		res.Addresses, res.Ledger = p.addresses, p.entries
		for _, bad := range p.invalid {
			m.log.WithFields(logrus.Fields{
				"ip":             util.SanitizeForLog(bad),
				"ip_set_version": snapshot.AddressVersion,
			}).Warn("skipping candidate with invalid or other-family address")
		}

		if sameAddresses(snapshot.Addresses, p.addresses) {
			m.log.WithField("ip_set", snapshot.Name).Debug("ip set unchanged, skipping update")
			break
		}

		res.Attempts++
		err = m.store.UpdateSet(ctx, m.opts.Scope, snapshot, p.addresses)
		if err == nil {
			res.Committed = true
			break
		}
		if !errors.Is(err, ErrConflict) {
			return res, fmt.Errorf("update ip set %s: %w", snapshot.Name, err)
		}
		res.Conflicts++
		if res.Conflicts > m.opts.MaxConflictRetries {
			m.log.WithField("attempts", res.Attempts).Error("ip set update conflict, giving up")
			return res, fmt.Errorf("update ip set %s after %d attempts: %w", snapshot.Name, res.Attempts, err)
		}
		m.log.WithField("attempt", res.Attempts).Warn("ip set update conflict, refetching")
	}

	if err := m.repo.Save(ctx, p.entries); err != nil {
		return res, fmt.Errorf("save blacklist ledger: %w", err)
	}

	m.log.WithFields(logrus.Fields{
		"expired":   len(res.Expired),
		"adopted":   len(res.Adopted),
		"dropped":   len(res.Dropped),
		"added":     len(res.Added),
		"addresses": len(res.Addresses),
		"committed": res.Committed,
	}).Info("blacklist synchronized")
	return res, nil
}

func (m *Manager) fetch(ctx context.Context) (models.IPSetSnapshot, error) {
	sets, err := m.store.ListSets(ctx, m.opts.Scope)
	if err != nil {
		return models.IPSetSnapshot{}, fmt.Errorf("list ip sets: %w", err)
	}
	if len(sets) == 0 {
		return models.IPSetSnapshot{}, ErrNoIPSets
	}
	for _, s := range sets {
		if s.Name != m.opts.IPSetName {
			continue
		}
		snapshot, err := m.store.GetSet(ctx, m.opts.Scope, s)
		if err != nil {
			return models.IPSetSnapshot{}, fmt.Errorf("get ip set %s: %w", s.Name, err)
		}
		return snapshot, nil
	}
	return models.IPSetSnapshot{}, fmt.Errorf("%w: %s", ErrIPSetNotFound, m.opts.IPSetName)
}

type plan struct {
	entries   []models.BlacklistEntry
	addresses []string
	expired   []string
	adopted   []string
	dropped   []string
	added     []string
	invalid   []string
}

// reconcile is the pure part of Sync. The ledger and remote slices are not
// modified. IPs are keyed by their canonical form, so each IP appears at most
// once in the resulting ledger. When version names an address family,
// candidates of the other family are reported as invalid.
func reconcile(ledger []models.BlacklistEntry, remote []string, candidates []models.BlacklistEntry, version string, now time.Time, ttl time.Duration) plan {
	p := plan{entries: []models.BlacklistEntry{}, addresses: []string{}}

	expired := make(map[string]struct{})
	var active []models.BlacklistEntry
	for _, e := range ledger {
		e.IP = NormalizeIP(e.IP)
		if e.Expired(now, ttl) {
			if _, ok := expired[e.IP]; !ok {
				p.expired = append(p.expired, e.IP)
			}
			expired[e.IP] = struct{}{}
			continue
		}
		active = append(active, e)
	}

	remoteIPs := make(map[string]struct{})
	for _, addr := range remote {
		ip := NormalizeIP(addr)
		if _, ok := expired[ip]; ok {
			continue
		}
		p.addresses = append(p.addresses, addr)
		remoteIPs[ip] = struct{}{}
	}

	known := make(map[string]struct{})
	seen := make(map[string]struct{})
	for _, e := range active {
		if _, ok := seen[e.IP]; ok {
			continue
		}
		seen[e.IP] = struct{}{}
		if _, ok := remoteIPs[e.IP]; !ok {
			p.dropped = append(p.dropped, e.IP)
			continue
		}
		known[e.IP] = struct{}{}
		p.entries = append(p.entries, e)
	}

	for _, addr := range p.addresses {
		ip := NormalizeIP(addr)
		if _, ok := known[ip]; ok {
			continue
		}
		known[ip] = struct{}{}
		p.adopted = append(p.adopted, ip)
		p.entries = append(p.entries, Adopt(ip, now))
	}

	for _, c := range candidates {
		addr, err := netip.ParseAddr(strings.TrimSpace(c.IP))
		if err != nil || !acceptsFamily(version, addr) {
			p.invalid = append(p.invalid, c.IP)
			continue
		}
		c.IP = addr.Unmap().String()
		if _, ok := known[c.IP]; ok {
			continue
		}
		cidr, err := ToCIDR(c.IP)
		if err != nil {
			p.invalid = append(p.invalid, c.IP)
			continue
		}
		known[c.IP] = struct{}{}
		p.added = append(p.added, c.IP)
		p.addresses = append(p.addresses, cidr)
		p.entries = append(p.entries, c)
	}
	return p
}

func acceptsFamily(version string, addr netip.Addr) bool {
	switch version {
	case models.IPAddressVersionIPv4:
		return addr.Unmap().Is4()
	case models.IPAddressVersionIPv6:
		return addr.Is6() && !addr.Is4In6()
	default:
		return true
	}
}

// Adopt builds a ledger entry for an address that exists only remotely.
func Adopt(ip string, now time.Time) models.BlacklistEntry {
	details := models.DetailsFrom(models.NewSourceIP(ip, models.NeutralFlag))
	return models.BlacklistEntry{
		IP:        ip,
		Reasons:   []string{models.ReasonMaliciousActivity},
		StartDate: now,
		IPDetails: details,
	}
}

// NormalizeIP returns the canonical address of addr, dropping any CIDR
// suffix. Input that does not parse is returned without its suffix.
func NormalizeIP(addr string) string {
	addr = strings.TrimSpace(addr)
	host := addr
	if i := strings.IndexByte(addr, '/'); i >= 0 {
		host = addr[:i]
	}
	if a, err := netip.ParseAddr(host); err == nil {
		return a.Unmap().String()
	}
	return host
}

// ToCIDR returns ip as a single host prefix: /32 for IPv4, /128 for IPv6.
func ToCIDR(ip string) (string, error) {
	addr, err := netip.ParseAddr(ip)
	if err != nil {
		return "", fmt.Errorf("parse ip %q: %w", ip, err)
	}
	return netip.PrefixFrom(addr, addr.BitLen()).String(), nil
}

func sameAddresses(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]int, len(a))
	for _, x := range a {
		set[x]++
	}
	for _, x := range b {
		if set[x] == 0 {
			return false
		}
		set[x]--
	}
	return true
}

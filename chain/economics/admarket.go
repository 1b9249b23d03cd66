package economics

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/Ian-Reitsma/the-block/chain/types"
)

// Campaign is one advertiser's registered buy: a budget in credits drawn
// down per impression at the registered bid.
type Campaign struct {
	ID                 string
	Advertiser         types.Address
	BudgetCt           uint64
	SpentCt            uint64
	BidPerImpressionCt uint64
	Active             bool
	RegisteredAtMs     uint64
}

// RemainingCt is the campaign's undrawn budget.
func (c Campaign) RemainingCt() uint64 {
	if c.SpentCt >= c.BudgetCt {
		return 0
	}
	return c.BudgetCt - c.SpentCt
}

var (
	// ErrCampaignExists rejects re-registration under a live id.
	ErrCampaignExists = errors.New("economics: campaign id already registered")
	// ErrCampaignNotFound is returned for lookups of unknown ids.
	ErrCampaignNotFound = errors.New("economics: campaign not found")
	// ErrCampaignExhausted is returned when an impression would overdraw
	// the campaign's remaining budget.
	ErrCampaignExhausted = errors.New("economics: campaign budget exhausted")
)

// AdMarket is the campaign broker behind the ad_market RPC surface. The
// revenue split it quotes comes from the engine's Layer 4 ad drift; the
// broker itself only tracks campaign inventory and budget draw-down.
type AdMarket struct {
	mu sync.Mutex

	engine      *Engine
	campaigns   map[string]*Campaign
	impressions uint64
}

// NewAdMarket constructs an empty broker quoting splits from engine.
func NewAdMarket(engine *Engine) *AdMarket {
	return &AdMarket{engine: engine, campaigns: make(map[string]*Campaign)}
}

// RegisterCampaign admits a new campaign after validating its id, budget
// and bid. The campaign starts active.
func (a *AdMarket) RegisterCampaign(c Campaign) error {
	if c.ID == "" {
		return errors.New("economics: campaign id required")
	}
	if c.BudgetCt == 0 {
		return errors.New("economics: campaign budget must be positive")
	}
	if c.BidPerImpressionCt == 0 {
		return errors.New("economics: campaign bid must be positive")
	}
	if c.BidPerImpressionCt > c.BudgetCt {
		return fmt.Errorf("economics: bid %d exceeds budget %d", c.BidPerImpressionCt, c.BudgetCt)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.campaigns[c.ID]; ok {
		return ErrCampaignExists
	}
	c.SpentCt = 0
	c.Active = true
	a.campaigns[c.ID] = &c
	return nil
}

// Inventory returns every active campaign, sorted by id for deterministic
// RPC output.
func (a *AdMarket) Inventory() []Campaign {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Campaign, 0, len(a.campaigns))
	for _, c := range a.campaigns {
		if c.Active {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Budget reports a campaign's remaining budget.
func (a *AdMarket) Budget(id string) (remainingCt uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.campaigns[id]
	if !ok {
		return 0, ErrCampaignNotFound
	}
	return c.RemainingCt(), nil
}

// RecordImpression charges one impression against the campaign at its
// registered bid, deactivating it when the budget can no longer cover
// another impression. Returns the amount charged.
func (a *AdMarket) RecordImpression(id string) (chargedCt uint64, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	c, ok := a.campaigns[id]
	if !ok {
		return 0, ErrCampaignNotFound
	}
	if !c.Active || c.RemainingCt() < c.BidPerImpressionCt {
		c.Active = false
		return 0, ErrCampaignExhausted
	}
	c.SpentCt += c.BidPerImpressionCt
	if c.RemainingCt() < c.BidPerImpressionCt {
		c.Active = false
	}
	a.impressions++
	return c.BidPerImpressionCt, nil
}

// AdDistribution is the bps split every ad credit settles under, quoted
// from the engine's drifted Layer 4 state. Treasury takes the remainder.
type AdDistribution struct {
	PlatformTakeBps uint32
	UserShareBps    uint32
	TreasuryBps     uint32
}

// Distribution quotes the current revenue split.
func (a *AdMarket) Distribution() AdDistribution {
	take, share := a.engine.AdSplit()
	t := uint32(take)
	s := uint32(share)
	if t > 10_000 {
		t = 10_000
	}
	if s > 10_000-t {
		s = 10_000 - t
	}
	return AdDistribution{PlatformTakeBps: t, UserShareBps: s, TreasuryBps: 10_000 - t - s}
}

// AdReadiness reports whether the broker can serve, with the reasons it
// cannot.
type AdReadiness struct {
	Ready   bool
	Reasons []string
}

// Readiness reports serve-readiness: at least one active funded campaign.
func (a *AdMarket) Readiness() AdReadiness {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, c := range a.campaigns {
		if c.Active && c.RemainingCt() >= c.BidPerImpressionCt {
			return AdReadiness{Ready: true}
		}
	}
	r := AdReadiness{Ready: false}
	if len(a.campaigns) == 0 {
		r.Reasons = append(r.Reasons, "no campaigns registered")
	} else {
		r.Reasons = append(r.Reasons, "no active funded campaign")
	}
	return r
}

// BrokerState returns a snapshot in the teacher's map[string]interface{}
// accessor style, for the node's RPC surface.
func (a *AdMarket) BrokerState() map[string]interface{} {
	a.mu.Lock()
	active := 0
	var committed, spent uint64
	for _, c := range a.campaigns {
		if c.Active {
			active++
		}
		committed += c.BudgetCt
		spent += c.SpentCt
	}
	total := len(a.campaigns)
	impressions := a.impressions
	a.mu.Unlock()

	dist := a.Distribution()
	return map[string]interface{}{
		"campaigns":          total,
		"active_campaigns":   active,
		"committed_budget":   committed,
		"spent_budget":       spent,
		"impressions":        impressions,
		"platform_take_bps":  dist.PlatformTakeBps,
		"user_share_bps":     dist.UserShareBps,
		"treasury_share_bps": dist.TreasuryBps,
	}
}

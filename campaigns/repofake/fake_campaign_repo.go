package campaignrepofake

import (
	"sort"
	"sync"

	"github.com/pressline/go-content-server/campaigns"
)

var _ campaigns.Repo = (*FakeCampaignRepo)(nil)

type FakeCampaignRepo struct {
	campaigns map[string]*campaigns.Campaign
	lock      sync.RWMutex
}

func NewFakeCampaignRepo() *FakeCampaignRepo {
	return &FakeCampaignRepo{
		campaigns: make(map[string]*campaigns.Campaign),
	}
}

func (cr *FakeCampaignRepo) Create(c *campaigns.Campaign) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	cp := *c
	cr.campaigns[c.ID] = &cp
	return nil
}

func (cr *FakeCampaignRepo) Update(c *campaigns.Campaign) error {
	cr.lock.Lock()
	defer cr.lock.Unlock()

	if _, ok := cr.campaigns[c.ID]; !ok {
		return campaigns.ErrNotFound
	}
	cp := *c
	cr.campaigns[c.ID] = &cp
	return nil
}

func (cr *FakeCampaignRepo) GetByID(id string) (*campaigns.Campaign, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	c, ok := cr.campaigns[id]
	if !ok {
		return nil, campaigns.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (cr *FakeCampaignRepo) List(limit int) ([]*campaigns.Campaign, error) {
	cr.lock.RLock()
	defer cr.lock.RUnlock()

	list := make([]*campaigns.Campaign, 0, len(cr.campaigns))
	for _, c := range cr.campaigns {
		cp := *c
		list = append(list, &cp)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt.After(list[j].CreatedAt)
	})
	if limit > 0 && len(list) > limit {
		list = list[:limit]
	}
	return list, nil
}

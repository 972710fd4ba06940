package xerosync

import "context"

// TrackingCategory is a remote-defined classification dimension with its
// allowed option values.
type TrackingCategory struct {
	TrackingCategoryID string           `json:"TrackingCategoryID"`
	Name               string           `json:"Name"`
	Status             string           `json:"Status"`
	Options            []TrackingOption `json:"Options"`
}

type TrackingOption struct {
	TrackingOptionID string `json:"TrackingOptionID"`
	Name             string `json:"Name"`
}

// TrackingCategoryCache fetches the remote tracking categories once per
// engine instance and answers validation lookups from memory for the
// rest of the batch. It is owned by the engine, not a package static, so
// a fresh run re-fetches.
type TrackingCategoryCache struct {
	client  RemoteClient
	fetched bool
	options map[string]map[string]bool
}

func NewTrackingCategoryCache(client RemoteClient) *TrackingCategoryCache {
	return &TrackingCategoryCache{client: client}
}

// Validate checks one tracking assignment against the remote-defined
// categories.
func (c *TrackingCategoryCache) Validate(ctx context.Context, assignment TrackingAssignment) error {
	if !c.fetched {
		categories, err := c.client.FetchTrackingCategories(ctx)
		if err != nil {
			return err
		}
		c.options = make(map[string]map[string]bool, len(categories))
		for _, category := range categories {
			opts := make(map[string]bool, len(category.Options))
			for _, opt := range category.Options {
				opts[opt.Name] = true
			}
			c.options[category.Name] = opts
		}
		c.fetched = true
	}

	opts, ok := c.options[assignment.Name]
	if !ok || !opts[assignment.Option] {
		return &InvalidTrackingCategoryError{Name: assignment.Name, Option: assignment.Option}
	}
	return nil
}

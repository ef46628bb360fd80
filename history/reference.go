package history

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/coursehistory/coursehistory-go/changelog"
)

// ReferenceData holds the entries a provider contributes to one record, on top of its snapshot diff.
type ReferenceData struct {
	Added   []DiffEntry
	Changed []DiffEntry
	Deleted []DiffEntry
}

// ReferenceDataOf sorts entries into the section matching their kind.
func ReferenceDataOf(entries ...DiffEntry) ReferenceData {
	var data ReferenceData
	data.append(entries...)

	return data
}

// IsEmpty reports whether no section holds an entry.
func (d ReferenceData) IsEmpty() bool {
	return len(d.Added) == 0 && len(d.Changed) == 0 && len(d.Deleted) == 0
}

func (d *ReferenceData) append(entries ...DiffEntry) {
	for _, entry := range entries {
		switch entry.Kind {
		case FieldAdded:
			d.Added = append(d.Added, entry)
		case FieldChanged:
			d.Changed = append(d.Changed, entry)
		case FieldDeleted:
			d.Deleted = append(d.Deleted, entry)
		}
	}
}

// ReferenceDataProvider contributes lookup-based entries for the records of one EntityKind.
//
// A provider only sees the fetched batch and its own lookups. It returns data keyed by ChangeRecord.ID
// and may leave out records it has nothing to say about.
type ReferenceDataProvider interface {
	EntityKind() changelog.EntityKind
	Provide(ctx context.Context, batch changelog.ChangeRecords) (map[int64]ReferenceData, error)
}

// coveringProvider is implemented by providers that also read records of kinds other than their own.
type coveringProvider interface {
	CoveredEntityKinds() []changelog.EntityKind
}

// ProviderRegistry holds at most one ReferenceDataProvider per EntityKind.
type ProviderRegistry struct {
	providers map[changelog.EntityKind]ReferenceDataProvider
}

// NewProviderRegistry registers the providers. A later provider for the same kind replaces an earlier one.
func NewProviderRegistry(providers ...ReferenceDataProvider) ProviderRegistry {
	registry := ProviderRegistry{providers: make(map[changelog.EntityKind]ReferenceDataProvider, len(providers))}
	for _, provider := range providers {
		registry.providers[provider.EntityKind()] = provider
	}

	return registry
}

// Provider returns the provider registered for kind.
func (r ProviderRegistry) Provider(kind changelog.EntityKind) (ReferenceDataProvider, bool) {
	provider, ok := r.providers[kind]
	return provider, ok
}

// Provide runs every provider whose kind, or one of the kinds it covers, is present in the batch
// concurrently and merges their data.
// Kinds without a provider contribute nothing. Any provider failure fails the whole call with ErrEnrichmentFailed.
func (r ProviderRegistry) Provide(ctx context.Context, batch changelog.ChangeRecords) (map[int64]ReferenceData, error) {
	merged := make(map[int64]ReferenceData)
	if len(batch) == 0 || len(r.providers) == 0 {
		return merged, nil
	}

	present := make(map[changelog.EntityKind]struct{})
	for _, record := range batch {
		present[record.EntityKind] = struct{}{}
	}

	var mu sync.Mutex
	group, groupCtx := errgroup.WithContext(ctx)

	for _, provider := range r.providers {
		if !readsAnyOf(provider, present) {
			continue
		}

		group.Go(func() error {
			data, err := provider.Provide(groupCtx, batch)
			if err != nil {
				return err
			}

			mu.Lock()
			defer mu.Unlock()

			for recordID, entries := range data {
				existing := merged[recordID]
				existing.append(entries.Added...)
				existing.append(entries.Changed...)
				existing.append(entries.Deleted...)
				merged[recordID] = existing
			}

			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, errors.Join(ErrEnrichmentFailed, err)
	}

	return merged, nil
}

func readsAnyOf(provider ReferenceDataProvider, present map[changelog.EntityKind]struct{}) bool {
	kinds := []changelog.EntityKind{provider.EntityKind()}
	if covering, ok := provider.(coveringProvider); ok {
		kinds = covering.CoveredEntityKinds()
	}

	for _, kind := range kinds {
		if _, ok := present[kind]; ok {
			return true
		}
	}

	return false
}

package changelog

import (
	"slices"
	"time"
)

type FilterEntityIDString = string

/***** Filter *****/

type Filter struct {
	items         []FilterItem
	occurredFrom  time.Time
	occurredUntil time.Time
}

func (f Filter) Items() []FilterItem {
	return f.items
}

func (f Filter) OccurredFrom() time.Time {
	return f.occurredFrom
}

func (f Filter) OccurredUntil() time.Time {
	return f.occurredUntil
}

// Matches reports whether a ChangeRecord satisfies the Filter.
// Store implementations translate the Filter into their query language; Matches defines the semantics they must honor.
func (f Filter) Matches(record ChangeRecord) bool {
	if !f.occurredFrom.IsZero() && record.OccurredAt.Before(f.occurredFrom) {
		return false
	}

	if !f.occurredUntil.IsZero() && record.OccurredAt.After(f.occurredUntil) {
		return false
	}

	if len(f.items) == 0 {
		return true
	}

	for _, item := range f.items {
		if item.matches(record) {
			return true
		}
	}

	return false
}

/***** FilterItem *****/

type FilterItem struct {
	entityKinds    []EntityKind
	entityIDs      []FilterEntityIDString
	restrictsToIDs bool
	actions        []Action
}

func (fi FilterItem) EntityKinds() []EntityKind {
	return fi.entityKinds
}

func (fi FilterItem) EntityIDs() []FilterEntityIDString {
	return fi.entityIDs
}

// RestrictsToEntityIDs reports whether the item only matches the listed EntityIDs.
func (fi FilterItem) RestrictsToEntityIDs() bool {
	return fi.restrictsToIDs
}

// MatchesNothing reports whether the item was restricted to an empty set of EntityIDs.
// Such an item is always false, it must never widen into an unrestricted scan.
func (fi FilterItem) MatchesNothing() bool {
	return fi.restrictsToIDs && len(fi.entityIDs) == 0
}

func (fi FilterItem) Actions() []Action {
	return fi.actions
}

func (fi FilterItem) matches(record ChangeRecord) bool {
	if fi.MatchesNothing() {
		return false
	}

	if len(fi.entityKinds) > 0 && !slices.Contains(fi.entityKinds, record.EntityKind) {
		return false
	}

	if fi.restrictsToIDs {
		if record.EntityID == nil || !slices.Contains(fi.entityIDs, *record.EntityID) {
			return false
		}
	}

	if len(fi.actions) > 0 && !slices.Contains(fi.actions, record.Action) {
		return false
	}

	return true
}

/***** FilterBuilder *****/

// FilterBuilder builds a generic change record filter to be used in DB type-specific store implementations
// to build queries for the specific query language, e.g.: Postgres, Mysql, MongoDB, ...
// It only allows the filter combinations needed to read the history of an aggregate:
//
//   - empty filter
//   - (entityKind OR entityKind...)
//   - (entityKind AND entityID IN (...))
//   - (entityKind AND action)
//   - (entityKind AND entityID IN (...) AND (action OR action...))
//   - ((entityKind AND entityID IN (...)) OR (entityKind AND entityID IN (...))...) -> multiple FilterItem(s)
//
// Each of them can be bounded by an occurred from/until time range.
type FilterBuilder interface {
	// Matching starts a new FilterItem.
	Matching() EmptyFilterItemBuilder

	// MatchingAnyRecord directly creates an empty Filter.
	MatchingAnyRecord() Filter

	// OccurredFrom bounds the Filter to records that occurred at or after the given time.
	OccurredFrom(occurredAtFrom time.Time) FilterBuilder

	// OccurredUntil bounds the Filter to records that occurred at or before the given time.
	OccurredUntil(occurredAtUntil time.Time) FilterBuilder
}

type EmptyFilterItemBuilder interface {
	// AnyEntityKindOf adds one or multiple EntityKinds to the current FilterItem.
	//
	// It sanitizes the input:
	//	- removing empty EntityKinds ("")
	//	- sorting the EntityKinds
	//	- removing duplicate EntityKinds
	AnyEntityKindOf(entityKind EntityKind, entityKinds ...EntityKind) EntityKindFilterItemBuilder
}

type EntityKindFilterItemBuilder interface {
	// AndAnyEntityIDOf restricts the current FilterItem to the given EntityIDs.
	// An empty list is allowed and makes the FilterItem match nothing.
	//
	// It sanitizes the input:
	//	- removing empty EntityIDs ("")
	//	- sorting the EntityIDs
	//	- removing duplicate EntityIDs
	AndAnyEntityIDOf(entityIDs ...FilterEntityIDString) EntityIDFilterItemBuilder

	// AndAnyActionOf adds one or multiple Actions to the current FilterItem.
	AndAnyActionOf(action Action, actions ...Action) CompletedFilterItemBuilder

	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	// Finalize returns the Filter.
	Finalize() Filter
}

type EntityIDFilterItemBuilder interface {
	// AndAnyActionOf adds one or multiple Actions to the current FilterItem.
	AndAnyActionOf(action Action, actions ...Action) CompletedFilterItemBuilder

	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	// Finalize returns the Filter.
	Finalize() Filter
}

type CompletedFilterItemBuilder interface {
	// OrMatching finalizes the current FilterItem and starts a new one.
	OrMatching() EmptyFilterItemBuilder

	// Finalize returns the Filter.
	Finalize() Filter
}

// filterBuilder implements all the interfaces of FilterBuilder
type filterBuilder struct {
	filter            Filter
	currentFilterItem FilterItem
}

// BuildChangeFilter creates a FilterBuilder which must eventually be finalized with Finalize() or MatchingAnyRecord().
func BuildChangeFilter() FilterBuilder {
	return filterBuilder{}
}

// Matching starts a new FilterItem.
func (fb filterBuilder) Matching() EmptyFilterItemBuilder {
	fb.currentFilterItem = FilterItem{}

	return fb
}

// OccurredFrom bounds the Filter to records that occurred at or after the given time.
func (fb filterBuilder) OccurredFrom(occurredAtFrom time.Time) FilterBuilder {
	fb.filter.occurredFrom = occurredAtFrom

	return fb
}

// OccurredUntil bounds the Filter to records that occurred at or before the given time.
func (fb filterBuilder) OccurredUntil(occurredAtUntil time.Time) FilterBuilder {
	fb.filter.occurredUntil = occurredAtUntil

	return fb
}

// AnyEntityKindOf adds one or multiple EntityKinds to the current FilterItem expecting ANY EntityKind to match.
func (fb filterBuilder) AnyEntityKindOf(
	entityKind EntityKind,
	entityKinds ...EntityKind,
) EntityKindFilterItemBuilder {

	allEntityKinds := append([]EntityKind{entityKind}, entityKinds...)
	allEntityKinds = slices.DeleteFunc(allEntityKinds, func(k EntityKind) bool { return k == "" })
	slices.Sort(allEntityKinds)
	allEntityKinds = slices.Compact(allEntityKinds)

	fb.currentFilterItem.entityKinds = slices.Clip(allEntityKinds)

	return fb
}

// AndAnyEntityIDOf restricts the current FilterItem to the given EntityIDs expecting ANY EntityID to match.
func (fb filterBuilder) AndAnyEntityIDOf(entityIDs ...FilterEntityIDString) EntityIDFilterItemBuilder {
	allEntityIDs := slices.Clone(entityIDs)
	allEntityIDs = slices.DeleteFunc(allEntityIDs, func(id FilterEntityIDString) bool { return id == "" })
	slices.Sort(allEntityIDs)
	allEntityIDs = slices.Compact(allEntityIDs)

	fb.currentFilterItem.restrictsToIDs = true
	fb.currentFilterItem.entityIDs = slices.Clip(allEntityIDs)

	return fb
}

// AndAnyActionOf adds one or multiple Actions to the current FilterItem expecting ANY Action to match.
func (fb filterBuilder) AndAnyActionOf(action Action, actions ...Action) CompletedFilterItemBuilder {
	allActions := append([]Action{action}, actions...)
	allActions = slices.DeleteFunc(allActions, func(a Action) bool { return a == "" })
	slices.Sort(allActions)
	allActions = slices.Compact(allActions)

	fb.currentFilterItem.actions = slices.Clip(allActions)

	return fb
}

// OrMatching finalizes the current FilterItem and starts a new one.
func (fb filterBuilder) OrMatching() EmptyFilterItemBuilder {
	fb.filter.items = append(slices.Clip(fb.filter.items), fb.currentFilterItem)
	fb.currentFilterItem = FilterItem{}

	return fb
}

// MatchingAnyRecord directly creates an empty filter.
func (fb filterBuilder) MatchingAnyRecord() Filter {
	return fb.filter
}

// Finalize returns the Filter.
func (fb filterBuilder) Finalize() Filter {
	fb.filter.items = append(slices.Clip(fb.filter.items), fb.currentFilterItem)

	return fb.filter
}

package main

import "gorm.io/gorm"

// EventSort orders a ledger-event listing by chain position: oldest
// first is append order, newest first is the reverse.
type EventSort string

const (
	EventSortOldestFirst EventSort = "asc"
	EventSortNewestFirst EventSort = "desc"
)

const (
	defaultEventPageSize = 50
	maxEventPageSize     = 500
)

// EventQuery narrows and pages a ledger-event listing for browsing.
// Account, when set, matches events where the account is either the
// sender or the recipient. A nil query yields the full chain in append
// order; a non-nil query is always paged, so its results are not
// suitable input to chain verification.
type EventQuery struct {
	Account string
	Offset  uint32
	Limit   uint32
	Sort    EventSort
}

func (q *EventQuery) applyTo(db *gorm.DB) *gorm.DB {
	if q == nil {
		return db.Order("id ASC")
	}

	if q.Account != "" {
		db = db.Where("from_account = ? OR to_account = ?", q.Account, q.Account)
	}

	order := "id ASC"
	if q.Sort == EventSortNewestFirst {
		order = "id DESC"
	}
	db = db.Order(order)

	limit := int(q.Limit)
	if limit == 0 {
		limit = defaultEventPageSize
	} else if limit > maxEventPageSize {
		limit = maxEventPageSize
	}
	return db.Offset(int(q.Offset)).Limit(limit)
}
